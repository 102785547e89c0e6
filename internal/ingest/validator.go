package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DrGermanius/orderingest/internal/model"
)

const (
	fieldOrderID      = "order_id"
	fieldCustomerID   = "customer_id"
	fieldProductID    = "product_id"
	fieldQuantity     = "quantity"
	fieldPricePerUnit = "price_per_unit"
	fieldOrderDate    = "order_date"
	fieldStatus       = "status"
	fieldTotalAmount  = "total_amount"
)

// priceScale matches the NUMERIC(10,2) columns.
const priceScale = 2

// maxIdentifierLength matches the VARCHAR(255) identifier columns.
const maxIdentifierLength = 255

var (
	orderIDPattern    = regexp.MustCompile(`^ORD-[0-9]{5,}$`)
	customerIDPattern = regexp.MustCompile(`^CUST-[0-9]{5,}$`)
	productIDPattern  = regexp.MustCompile(`^PROD-[0-9]{5,}$`)

	// exclusive upper bound of NUMERIC(10,2)
	maxAmount = decimal.New(1, 8)

	orderDateLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	minOrderDate = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxOrderDate = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)

	minUnixSeconds = decimal.NewFromInt(minOrderDate.Unix())
	maxUnixSeconds = decimal.NewFromInt(maxOrderDate.Unix())

	// validate is swapped in tests to exercise panic recovery.
	validate = Validate
)

// Validate checks one raw record and computes total_amount. A non-nil error is always a
// *ValidationError listing every violated field.
func Validate(rec model.RawRecord) (model.OrderDraft, error) {
	var (
		d    model.OrderDraft
		verr ValidationError
	)

	if rec.Fields == nil {
		verr.add("record", "must be an object")
		return d, &verr
	}

	d.OrderID = validateIdentifier(&verr, rec.Fields, fieldOrderID, orderIDPattern, "ORD-")
	d.CustomerID = validateIdentifier(&verr, rec.Fields, fieldCustomerID, customerIDPattern, "CUST-")
	d.ProductID = validateIdentifier(&verr, rec.Fields, fieldProductID, productIDPattern, "PROD-")

	quantity, qtyOK := validateQuantity(&verr, rec.Fields[fieldQuantity])
	price, priceOK := validatePrice(&verr, rec.Fields[fieldPricePerUnit])
	d.Quantity = quantity
	d.PricePerUnit = price

	d.OrderDate = validateOrderDate(&verr, rec.Fields[fieldOrderDate])
	d.Status = validateStatus(&verr, rec.Fields[fieldStatus])

	if qtyOK && priceOK {
		d.TotalAmount = decimal.NewFromInt(int64(quantity)).Mul(price)
		if d.TotalAmount.GreaterThanOrEqual(maxAmount) {
			verr.add(fieldTotalAmount, "must be less than "+maxAmount.String())
		}
	}

	if len(verr.Violations) > 0 {
		return model.OrderDraft{}, &verr
	}
	return d, nil
}

// ValidateSafe is Validate with panics converted into an ingestion error.
func ValidateSafe(rec model.RawRecord) (d model.OrderDraft, ierr *model.IngestionError) {
	defer func() {
		if r := recover(); r != nil {
			ierr = &model.IngestionError{
				Row:   rec.Row,
				Data:  rec.Fields,
				Error: fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()

	d, err := validate(rec)
	if err == nil {
		return d, nil
	}

	ierr = &model.IngestionError{Row: rec.Row, Data: rec.Fields, Error: err.Error()}
	if verr, ok := err.(*ValidationError); ok {
		ierr.Fields = verr.Violations
	} else {
		ierr.Error = "unexpected error: " + err.Error()
	}
	return d, ierr
}

func validateIdentifier(verr *ValidationError, fields map[string]interface{}, name string, pattern *regexp.Regexp, prefix string) string {
	s, ok := asString(fields[name])
	switch {
	case !ok:
		verr.add(name, "must be a string")
	case s == "":
		verr.add(name, "field required")
	case len(s) > maxIdentifierLength:
		verr.add(name, fmt.Sprintf("must be at most %d characters", maxIdentifierLength))
	case !pattern.MatchString(s):
		verr.add(name, fmt.Sprintf("must match %s followed by at least 5 digits", prefix))
	}
	return s
}

func validateQuantity(verr *ValidationError, v interface{}) (int, bool) {
	if isMissing(v) {
		verr.add(fieldQuantity, "field required")
		return 0, false
	}

	n, err := asInt(v)
	if err != nil {
		verr.add(fieldQuantity, err.Error())
		return 0, false
	}
	if n <= 0 {
		verr.add(fieldQuantity, "must be greater than 0")
		return 0, false
	}
	if n > math.MaxInt32 {
		verr.add(fieldQuantity, "is too large")
		return 0, false
	}
	return int(n), true
}

func validatePrice(verr *ValidationError, v interface{}) (decimal.Decimal, bool) {
	if isMissing(v) {
		verr.add(fieldPricePerUnit, "field required")
		return decimal.Zero, false
	}

	d, err := asDecimal(v)
	if err != nil {
		verr.add(fieldPricePerUnit, err.Error())
		return decimal.Zero, false
	}
	if !d.IsPositive() {
		verr.add(fieldPricePerUnit, "must be greater than 0")
		return decimal.Zero, false
	}
	if !d.Equal(d.Truncate(priceScale)) {
		verr.add(fieldPricePerUnit, fmt.Sprintf("must have at most %d decimal places", priceScale))
		return decimal.Zero, false
	}
	if d.GreaterThanOrEqual(maxAmount) {
		verr.add(fieldPricePerUnit, "must be less than "+maxAmount.String())
		return decimal.Zero, false
	}
	return d, true
}

func validateOrderDate(verr *ValidationError, v interface{}) time.Time {
	if isMissing(v) {
		verr.add(fieldOrderDate, "field required")
		return time.Time{}
	}

	t, err := asTime(v)
	if err != nil {
		verr.add(fieldOrderDate, err.Error())
		return time.Time{}
	}
	t = t.UTC()
	if t.Before(minOrderDate) || t.After(maxOrderDate) {
		verr.add(fieldOrderDate, "must be between years 1 and 9999")
		return time.Time{}
	}
	return t
}

func validateStatus(verr *ValidationError, v interface{}) string {
	if isMissing(v) {
		return model.OrderStatusPending
	}

	s, ok := v.(string)
	if !ok || !model.IsValidStatus(s) {
		verr.add(fieldStatus, "must be one of "+strings.Join(model.OrderStatuses, ", "))
		return ""
	}
	return s
}

func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	default:
		return "", false
	}
}

func asInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return parseIntegral(t.String())
	case string:
		return parseIntegral(strings.TrimSpace(t))
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("must be an integer")
		}
		if t >= math.MaxInt64 || t < math.MinInt64 {
			return 0, fmt.Errorf("is too large")
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

func parseIntegral(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// "5.0" is accepted, "5.5" is not
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("must be an integer")
	}
	if !d.Abs().LessThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("is too large")
	}
	return d.IntPart(), nil
}

func asDecimal(v interface{}) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	default:
		return decimal.Zero, fmt.Errorf("must be a decimal number")
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a decimal number")
	}
	return d, nil
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range orderDateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("must be a valid datetime")
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("must be a valid datetime")
		}
		return unixTime(d)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, fmt.Errorf("must be a valid datetime")
		}
		return unixTime(decimal.NewFromFloat(t))
	case time.Time:
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("must be a valid datetime")
	}
}

// unixTime converts Unix seconds, checking the range first so IntPart cannot overflow.
func unixTime(secs decimal.Decimal) (time.Time, error) {
	if secs.LessThan(minUnixSeconds) || secs.GreaterThan(maxUnixSeconds) {
		return time.Time{}, fmt.Errorf("must be between years 1 and 9999")
	}
	whole := secs.Truncate(0)
	nanos := secs.Sub(whole).Shift(9).IntPart()
	return time.Unix(whole.IntPart(), nanos), nil
}
