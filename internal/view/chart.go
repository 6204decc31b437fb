package view

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	incomeColor  = drawing.ColorFromHex("2e7d32")
	expenseColor = drawing.ColorFromHex("c62828")
	balanceColor = drawing.ColorFromHex("1565c0")
)

// Chart renders income, expense and balance bars for every panel as a PNG.
func Chart(panels []Panel) ([]byte, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("chart: no panels")
	}

	bars := make([]chart.Value, 0, len(panels)*3)
	low, high := 0.0, 0.0
	for _, p := range panels {
		for _, b := range []struct {
			label string
			value float64
			color drawing.Color
		}{
			{"income", p.Stats.Income.InexactFloat64(), incomeColor},
			{"expense", p.Stats.Expense.InexactFloat64(), expenseColor},
			{"balance", p.Stats.Balance.InexactFloat64(), balanceColor},
		} {
			if b.value < low {
				low = b.value
			}
			if b.value > high {
				high = b.value
			}
			bars = append(bars, chart.Value{
				Label: fmt.Sprintf("%s %s", p.Period, b.label),
				Value: b.value,
				Style: chart.Style{
					StrokeColor: b.color,
					FillColor:   b.color.WithAlpha(180),
				},
			})
		}
	}
	if high == low {
		// go-chart refuses a zero-height range
		high = low + 1
	}

	graph := chart.BarChart{
		Title:      "Income / expense / balance",
		Width:      960,
		Height:     420,
		BarWidth:   40,
		BarSpacing: 20,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: low, Max: high},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("¥%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render ledger chart: %w", err)
	}
	return buffer.Bytes(), nil
}
