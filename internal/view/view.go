// Package view turns a filtered record list and its totals into the display
// model shown by the panels. It does no filtering or arithmetic of its own.
package view

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/stats"
)

// PlaceholderText is shown as the only line item of an empty panel.
const PlaceholderText = "No records"

const (
	StyleIncome  = "income"
	StyleExpense = "expense"
)

type (
	// Totals holds the formatted income, expense and balance of a panel.
	Totals struct {
		Income  string
		Expense string
		Balance string
	}

	// LineItem is one row of a panel.
	LineItem struct {
		ID       int64
		Content  string
		Date     string
		Method   string
		Category string
		Amount   string // signed and formatted, e.g. "+¥100.00"
		Style    string
		// Placeholder marks the single row rendered for an empty panel.
		Placeholder bool
	}

	Panel struct {
		Period stats.Period
		Title  string
		Stats  stats.Stats
		Totals Totals
		Items  []LineItem
		Count  int
	}
)

var titles = map[stats.Period]string{
	stats.Month: "This month",
	stats.Year:  "This year",
	stats.All:   "All time",
}

// Title returns the heading used for a period panel.
func Title(p stats.Period) string {
	if t, ok := titles[p]; ok {
		return t
	}
	return titles[stats.All]
}

// FormatMoney renders an amount for display, rounded to two decimals.
func FormatMoney(d decimal.Decimal) string {
	return core.FormatMoney(d)
}

// Render builds the panel for records, which must already be filtered and ordered.
func Render(period stats.Period, records []core.Record, s stats.Stats) Panel {
	p := Panel{
		Period: period,
		Title:  Title(period),
		Stats:  s,
		Totals: Totals{
			Income:  FormatMoney(s.Income),
			Expense: FormatMoney(s.Expense),
			Balance: FormatMoney(s.Balance),
		},
		Count: len(records),
	}

	if len(records) == 0 {
		p.Items = []LineItem{{Content: PlaceholderText, Placeholder: true}}
		return p
	}

	p.Items = make([]LineItem, 0, len(records))
	for _, r := range records {
		p.Items = append(p.Items, lineItem(r))
	}
	return p
}

func lineItem(r core.Record) LineItem {
	item := LineItem{
		ID:       r.ID,
		Content:  r.Content,
		Date:     r.Date.String(),
		Method:   r.Method,
		Category: r.Type,
	}
	if r.IsIncome() {
		item.Amount = "+" + FormatMoney(r.Amount)
		item.Style = StyleIncome
	} else {
		item.Amount = "-" + FormatMoney(r.Amount)
		item.Style = StyleExpense
	}
	return item
}
