package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/DrGermanius/orderingest/internal/model"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
	zipSignature  = []byte{'P', 'K', 0x03, 0x04}
)

// Payload is one ingestion request. Exactly one of File and Records must be set.
// A nil Records means the list form was not supplied; an empty non-nil slice is an empty batch.
type Payload struct {
	File     []byte
	FileName string
	Records  []interface{}
}

func (p Payload) hasFile() bool {
	return p.File != nil
}

func (p Payload) hasRecords() bool {
	return p.Records != nil
}

// Parse turns a payload into raw records in input order.
func Parse(p Payload) ([]model.RawRecord, error) {
	switch {
	case p.hasFile() == p.hasRecords():
		return nil, ErrInputConflict
	case p.hasRecords():
		return parseList(p.Records), nil
	case isWorkbook(p):
		return parseWorkbook(p.File)
	default:
		return parseCSV(p.File)
	}
}

func parseList(items []interface{}) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			// kept as a row so the validator reports it against its index
			fields = nil
		}
		records = append(records, model.RawRecord{Row: i + 1, Fields: fields})
	}
	return records
}

func isWorkbook(p Payload) bool {
	return strings.HasSuffix(strings.ToLower(p.FileName), ".xlsx") || bytes.HasPrefix(p.File, zipSignature)
}

func parseCSV(data []byte) ([]model.RawRecord, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8", ErrMalformedInput)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []model.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv header: %v", ErrMalformedInput, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading csv: %v", ErrMalformedInput, err)
		}
		rows = append(rows, row)
	}

	return toRecords(header, rows), nil
}

func parseWorkbook(data []byte) ([]model.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", ErrMalformedInput, sheets[0], err)
	}
	if len(rows) == 0 {
		return []model.RawRecord{}, nil
	}

	header := rows[0]
	body := rows[1:]
	for i, row := range body {
		// excelize drops trailing empty cells
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d columns, header has %d", ErrMalformedInput, i+1, len(row), len(header))
		}
	}

	return toRecords(header, body), nil
}

func toRecords(header []string, rows [][]string) []model.RawRecord {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(string(bytes.TrimPrefix([]byte(h), byteOrderMark)))
	}

	records := make([]model.RawRecord, 0, len(rows))
	for i, row := range rows {
		fields := make(map[string]interface{}, len(columns))
		for j, col := range columns {
			if col == "" || j >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[j]); v != "" {
				fields[col] = v
			}
		}
		records = append(records, model.RawRecord{Row: i + 1, Fields: fields})
	}
	return records
}
