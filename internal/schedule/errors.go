package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDate   = errors.New("malformed date")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrUnknownCategory = errors.New("unknown category")
	ErrNotLongTerm     = errors.New("event is not long-term")
)

// MalformedDateError reports a date/time field that matches no recognized
// pattern. It is distinct from an absent field.
type MalformedDateError struct {
	Field string
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, ErrMalformedDate)
}

func (e *MalformedDateError) Unwrap() error {
	return ErrMalformedDate
}

// InvalidRangeError reports a long-term event whose end date is missing or
// precedes its start date, or an interval that cannot be made ordered.
type InvalidRangeError struct {
	ID      string
	Date    string
	EndDate string
}

func (e *InvalidRangeError) Error() string {
	if e.EndDate == "" {
		return fmt.Sprintf("event %s: missing end date: %v", e.ID, ErrInvalidRange)
	}
	return fmt.Sprintf("event %s: %s..%s: %v", e.ID, e.Date, e.EndDate, ErrInvalidRange)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("%q: %v", e.Category, ErrUnknownCategory)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}
