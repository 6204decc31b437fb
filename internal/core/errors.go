package core

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user declines a confirmation gate.
var ErrCancelled = errors.New("operation cancelled")

// PersistenceError reports a backing store that could not be read or written,
// or a stored payload that could not be decoded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FormatError reports an import payload whose top level is not a record sequence.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format: %s: %v", e.Reason, e.Err)
	}
	return "format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseError reports a form field whose value could not be parsed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsFormat reports whether err is or wraps a *FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsParse reports whether err is or wraps a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsInvalidInput reports whether err rejects user input: a parse failure
// or a record that fails validation.
func IsInvalidInput(err error) bool {
	if IsParse(err) {
		return true
	}
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidAmount, ErrEmptyContent,
		ErrEmptyMethod, ErrUnknownCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
