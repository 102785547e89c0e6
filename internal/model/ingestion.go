package model

// RawRecord is one untyped input row. Row is 1-based in input order.
type RawRecord struct {
	Row    int
	Fields map[string]interface{}
}

type IngestionError struct {
	Row    int                    `json:"row"`
	Data   map[string]interface{} `json:"data"`
	Error  string                 `json:"error"`
	Fields []FieldViolation       `json:"fields,omitempty"`
}

type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

const ResultStatusCompleted = "completed"

// MaxReportedErrors caps IngestionResult.Errors. Failed still counts every failure.
const MaxReportedErrors = 10

type IngestionResult struct {
	Status         string           `json:"status"`
	BatchID        string           `json:"batch_id"`
	TotalSubmitted int              `json:"total_submitted"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Errors         []IngestionError `json:"errors"`
	StoreError     *StoreFailure    `json:"store_error,omitempty"`
}

// StoreFailure tells the caller that valid records were not persisted because the commit failed.
type StoreFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
