package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteDecisionsXLSX writes the audit records to an Excel workbook with
// one row per decision, loss rows highlighted red and profit rows green.
func WriteDecisionsXLSX(records []Record, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const sheet = "Decisions"
	fx.SetSheetName(fx.GetSheetName(0), sheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	redStyle, err := fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "CC0000"},
		NumFmt: 4,
	})
	if err != nil {
		return err
	}
	greenStyle, err := fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "008000"},
		NumFmt: 4,
	})
	if err != nil {
		return err
	}

	headers := []string{"ID", "Timestamp", "Symbol", "Action", "Reason", "Fraction",
		"Gross PnL %", "Net PnL %", "Regime", "Emergency", "Price Source", "PnL Method", "Score"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, header)
		fx.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		values := []interface{}{
			rec.ID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Action,
			rec.Reason,
			rec.Fraction,
			rec.GrossPnLPct,
			rec.NetPnLPct,
			rec.Regime,
			rec.Emergency,
			rec.PriceSource,
			rec.PnLMethod,
			rec.Score,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
			fx.SetCellValue(sheet, cell, value)
		}

		pnlStyle := greenStyle
		if rec.NetPnLPct < 0 {
			pnlStyle = redStyle
		}
		grossCell, _ := excelize.CoordinatesToCellName(7, row)
		netCell, _ := excelize.CoordinatesToCellName(8, row)
		fx.SetCellStyle(sheet, grossCell, netCell, pnlStyle)
	}

	fx.SetColWidth(sheet, "A", "A", 38)
	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "E", "E", 30)

	return fx.SaveAs(path)
}
