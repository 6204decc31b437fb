// Package stats partitions records by calendar period and reduces them into
// income, expense and balance totals.
package stats

import (
	"sort"
	"strings"
	"time"

	"ledger/internal/core"
)

// Period selects a time window relative to a reference date.
type Period string

const (
	Month Period = "month"
	Year  Period = "year"
	All   Period = "all"
)

// Periods returns the panel periods in display order.
func Periods() []Period {
	return []Period{Month, Year, All}
}

// ParsePeriod normalizes a selector. Unknown values are kept as given and
// select every record, like All.
func ParsePeriod(s string) Period {
	return Period(strings.ToLower(strings.TrimSpace(s)))
}

// IsKnown reports whether p is one of month, year or all.
func (p Period) IsKnown() bool {
	switch p {
	case Month, Year, All:
		return true
	default:
		return false
	}
}

func (p Period) String() string {
	return string(p)
}

// Contains reports whether a record dated d falls inside p relative to ref.
func (p Period) Contains(d core.Date, ref time.Time) bool {
	switch p {
	case Month:
		return !d.IsZero() && d.Year() == ref.Year() && d.Month() == ref.Month()
	case Year:
		return !d.IsZero() && d.Year() == ref.Year()
	default:
		return true
	}
}

// SelectByPeriod returns the records whose date falls in period relative to ref,
// newest creation timestamp first. Records sharing a timestamp keep their
// insertion order. The input slice is never reordered.
func SelectByPeriod(records []core.Record, period Period, ref time.Time) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if period.Contains(r.Date, ref) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
