package model

import (
	"errors"
	"fmt"

	"datez/internal/civil"
)

// Sentinel errors. Callers test with errors.Is.
var (
	// ErrInvalidDate covers malformed or impossible calendar dates, both at
	// load time and during occurrence resolution.
	ErrInvalidDate = civil.ErrInvalidDate

	// ErrSpanOverflow is returned when a span exceeds the representable range.
	ErrSpanOverflow = errors.New("span overflow")

	// ErrConversion is returned when a unit of a decomposed span does not
	// fit its field.
	ErrConversion = errors.New("unit conversion out of range")

	// ErrIO is returned when the events file cannot be read.
	ErrIO = errors.New("io failure")

	// ErrParse is returned for malformed persisted records.
	ErrParse = errors.New("parse failure")
)

// RecordError locates a load-time failure at a record of the events file.
type RecordError struct {
	Index int
	Label string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("record %d (%q): %v", e.Index, e.Label, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err stems from bad input data rather than
// from the environment. Such errors reproduce every cycle until the data
// is corrected.
func IsDataError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrSpanOverflow) ||
		errors.Is(err, ErrConversion) ||
		errors.Is(err, ErrParse)
}
