package http

import (
	"strings"
	"time"

	"ledger/internal/stats"
)

// sanitizeInput drops control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// confirmed reports whether a destructive request carries confirm=yes.
func confirmed(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1", "on":
		return true
	}
	return false
}

// periodParam returns the period selector, defaulting to month when absent.
func periodParam(v string) stats.Period {
	if strings.TrimSpace(v) == "" {
		return stats.Month
	}
	return stats.ParsePeriod(v)
}

func contentDisposition(filename string) string {
	return `attachment; filename="` + filename + `"`
}

func today(now time.Time) string {
	return now.Format("2006-01-02")
}
