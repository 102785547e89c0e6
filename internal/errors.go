package internal

import "errors"

var (
	ErrNoRecords = errors.New("no records")

	ErrInvalidFilter = errors.New("invalid filter")

	ErrBodyTooLarge = errors.New("request body too large")
)
