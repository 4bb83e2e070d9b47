package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleReporter renders recent decisions as a terminal table
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintRecent renders up to n recent decisions, newest first
func (r *ConsoleReporter) PrintRecent(trail *AuditTrail, n int) {
	records := trail.Recent(n)
	if len(records) == 0 {
		fmt.Println("No decisions recorded yet")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EXIT DECISIONS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Time", "Symbol", "Action", "Reason", "Net PnL %", "Regime", "Price Src"})
	for _, rec := range records {
		action := rec.Action
		if rec.Emergency {
			action = "🚨 " + action
		}
		t.AppendRow(table.Row{
			rec.Timestamp.Format("15:04:05"),
			rec.Symbol,
			action,
			rec.Reason,
			fmt.Sprintf("%+.2f", rec.NetPnLPct),
			rec.Regime,
			rec.PriceSource,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 32, Align: text.AlignLeft},
		{Number: 5, Align: text.AlignRight},
	})

	t.Render()
}
