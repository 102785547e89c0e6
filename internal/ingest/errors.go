package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DrGermanius/orderingest/internal/model"
)

var (
	ErrInputConflict  = errors.New("provide either a file or a data list, not both and not neither")
	ErrMalformedInput = errors.New("malformed input")
)

type StoreErrorKind string

const (
	ConstraintViolation StoreErrorKind = "constraint_violation"
	StoreTimeout        StoreErrorKind = "timeout"
	StoreOther          StoreErrorKind = "other"
)

// StoreError is returned by a Store when a bulk insert fails. Nothing from the batch is persisted.
type StoreError struct {
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %s", e.Kind, e.Message())
}

// Message is the underlying cause without the kind prefix.
func (e *StoreError) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(kind StoreErrorKind, err error) *StoreError {
	return &StoreError{Kind: kind, Err: err}
}

// AsStoreError converts any commit error into a *StoreError.
func AsStoreError(err error) *StoreError {
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewStoreError(StoreTimeout, err)
	}
	return NewStoreError(StoreOther, err)
}

// ValidationError lists every violated field of a single record.
type ValidationError struct {
	Violations []model.FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Violations = append(e.Violations, model.FieldViolation{Field: field, Reason: reason})
}
