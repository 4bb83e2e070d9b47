package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteDecisionsCSV writes the audit records to a CSV file
func WriteDecisionsCSV(records []Record, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"ID",
		"Timestamp",
		"Symbol",
		"Action",
		"Reason",
		"Fraction",
		"Gross_PnL_%",
		"Net_PnL_%",
		"Regime",
		"Emergency",
		"Price_Source",
		"PnL_Method",
		"Reversal_Score",
	}); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Timestamp.Format(time.RFC3339),
			rec.Symbol,
			rec.Action,
			rec.Reason,
			formatFloat(rec.Fraction),
			formatFloat(rec.GrossPnLPct),
			formatFloat(rec.NetPnLPct),
			rec.Regime,
			strconv.FormatBool(rec.Emergency),
			rec.PriceSource,
			rec.PnLMethod,
			strconv.Itoa(rec.Score),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
