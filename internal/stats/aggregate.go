package stats

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Stats holds unrounded totals for a record subset.
type Stats struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Aggregate sums income-classified amounts into Income and everything else
// into Expense. Balance is Income minus Expense. Empty input yields zeros.
func Aggregate(records []core.Record) Stats {
	income := decimal.Zero
	expense := decimal.Zero
	for _, r := range records {
		if r.IsIncome() {
			income = income.Add(r.Amount)
		} else {
			expense = expense.Add(r.Amount)
		}
	}
	return Stats{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}
