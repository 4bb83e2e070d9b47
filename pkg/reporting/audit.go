package reporting

import (
	"sync"
	"time"

	"github.com/krivonosoff161/futures-exit-bot/internal/engine"
)

// Record is one flattened exit decision for the audit trail
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason"`
	Fraction    float64   `json:"fraction,omitempty"`
	GrossPnLPct float64   `json:"gross_pnl_pct"`
	NetPnLPct   float64   `json:"net_pnl_pct"`
	Regime      string    `json:"regime"`
	Emergency   bool      `json:"emergency"`
	PriceSource string    `json:"price_source"`
	PnLMethod   string    `json:"pnl_method"`
	Score       int       `json:"reversal_score"`
}

// FromDecision flattens an engine decision into an audit record
func FromDecision(d *engine.Decision) Record {
	return Record{
		ID:          d.ID.String(),
		Timestamp:   d.Timestamp,
		Symbol:      d.Symbol,
		Action:      d.Action.String(),
		Reason:      d.Reason.String(),
		Fraction:    d.Fraction,
		GrossPnLPct: d.GrossPnLPct,
		NetPnLPct:   d.NetPnLPct,
		Regime:      d.Regime.String(),
		Emergency:   d.Emergency,
		PriceSource: d.Diagnostics.PriceSource,
		PnLMethod:   d.Diagnostics.PnLMethod,
		Score:       d.Diagnostics.ReversalScore,
	}
}

// AuditTrail is a bounded in-memory ring of recent decisions. When the
// buffer fills, the oldest records are overwritten.
type AuditTrail struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
}

// NewAuditTrail creates an audit trail holding up to size records
func NewAuditTrail(size int) *AuditTrail {
	if size <= 0 {
		size = 512
	}
	return &AuditTrail{records: make([]Record, size)}
}

// Add appends a record, overwriting the oldest when full
func (a *AuditTrail) Add(record Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[a.next] = record
	a.next++
	if a.next == len(a.records) {
		a.next = 0
		a.full = true
	}
}

// Snapshot returns all stored records, oldest first
func (a *AuditTrail) Snapshot() []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.full {
		out := make([]Record, a.next)
		copy(out, a.records[:a.next])
		return out
	}

	out := make([]Record, 0, len(a.records))
	out = append(out, a.records[a.next:]...)
	out = append(out, a.records[:a.next]...)
	return out
}

// Recent returns up to n most recent records, newest first
func (a *AuditTrail) Recent(n int) []Record {
	all := a.Snapshot()
	if n > len(all) {
		n = len(all)
	}
	out := make([]Record, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

// Len returns the number of stored records
func (a *AuditTrail) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.full {
		return len(a.records)
	}
	return a.next
}
