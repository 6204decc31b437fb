package core

import (
	"strings"
	"time"
)

// Form carries the raw values a user submits for a new record.
type Form struct {
	Type    string
	Date    string
	Content string
	Method  string
	Amount  string
}

// NewRecord normalizes form input into a Record created at now.
// The id and timestamp both derive from now in milliseconds; the ledger store
// bumps the id if it collides with one already stored.
func NewRecord(f Form, now time.Time) (Record, error) {
	amount, err := ParseAmount(f.Amount)
	if err != nil {
		return Record{}, err
	}

	date, err := ParseDate(f.Date)
	if err != nil {
		return Record{}, &ParseError{Field: "date", Value: f.Date, Err: err}
	}

	ms := now.UnixMilli()
	r := Record{
		ID:        ms,
		Type:      strings.TrimSpace(f.Type),
		Date:      date,
		Content:   strings.TrimSpace(f.Content),
		Method:    strings.TrimSpace(f.Method),
		Amount:    amount,
		Timestamp: ms,
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Today returns the calendar date of t in t's location.
func Today(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}
