package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date layout used by forms and the persisted payload.
const DateLayout = "2006-01-02"

// IncomeCategory is the only category counted as income. Every other category is an expense.
const IncomeCategory = "balance-carry"

// Categories is the closed set of record categories accepted at intake.
var Categories = []string{
	IncomeCategory,
	"food",
	"utility",
	"transport",
	"housing",
	"shopping",
	"medical",
	"entertainment",
	"other",
}

type (
	// Date is a calendar date (year-month-day) without a time of day.
	Date struct {
		time.Time
	}

	// Record is a single ledger entry.
	Record struct {
		ID        int64
		Type      string
		Date      Date
		Content   string
		Method    string
		Amount    decimal.Decimal
		Timestamp int64 // creation instant in milliseconds, ordering only

		// Issues lists fields that could not be decoded as their expected type.
		// Only set by lenient decoding.
		Issues []string

		// raw holds the element exactly as decoded when Issues is non-empty,
		// so a malformed record is written back as it arrived.
		raw json.RawMessage
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyContent    = errors.New("empty content")
	ErrEmptyMethod     = errors.New("empty method")
	ErrUnknownCategory = errors.New("unknown category")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format. Full RFC 3339 timestamps
// are accepted too and truncated to their calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsIncome reports whether a category is income-classified.
func IsIncome(category string) bool {
	return category == IncomeCategory
}

// IsKnownCategory reports whether category belongs to Categories.
func IsKnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// IsIncome reports whether the record counts as income.
func (r Record) IsIncome() bool {
	return IsIncome(r.Type)
}

// Malformed reports whether lenient decoding had to coerce any field.
func (r Record) Malformed() bool {
	return len(r.Issues) > 0
}

func (r Record) Validate() error {
	if !IsKnownCategory(r.Type) {
		return ErrUnknownCategory
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if strings.TrimSpace(r.Method) == "" {
		return ErrEmptyMethod
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}
