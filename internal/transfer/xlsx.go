package transfer

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Records"

var xlsxHeaders = []string{"ID", "Type", "Date", "Content", "Method", "Amount", "Timestamp"}

// XLSXFilename returns the spreadsheet export filename for the calendar date of now.
func XLSXFilename(now time.Time) string {
	return filenamePrefix + now.Format(core.DateLayout) + ".xlsx"
}

// ExportXLSX writes records to a single-sheet workbook, one row per record in
// the given order. Amounts are numeric cells with two-decimal formatting.
func ExportXLSX(records []core.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("amount style: %w", err)
	}

	for i, r := range records {
		row := i + 2
		values := []any{r.ID, r.Type, r.Date.String(), r.Content, r.Method, r.Amount.InexactFloat64(), r.Timestamp}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
		cell := fmt.Sprintf("F%d", row)
		if err := f.SetCellStyle(SheetName, cell, cell, amountStyle); err != nil {
			return nil, fmt.Errorf("style row %d: %w", row, err)
		}
	}

	f.SetColWidth(SheetName, "A", "A", 16)
	f.SetColWidth(SheetName, "B", "C", 14)
	f.SetColWidth(SheetName, "D", "D", 30)
	f.SetColWidth(SheetName, "E", "E", 14)
	f.SetColWidth(SheetName, "F", "F", 12)
	f.SetColWidth(SheetName, "G", "G", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
