package position

import (
	"time"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// Position describes an open leveraged position. It is owned by the
// external registry; the exit engine reads it and never mutates it.
type Position struct {
	Symbol      string            `json:"symbol"`
	Side        types.Side        `json:"side"`
	EntryPrice  float64           `json:"entry_price"`
	Size        float64           `json:"size"`
	Leverage    float64           `json:"leverage"`
	EntryTime   time.Time         `json:"entry_time"`
	EntryRegime regime.RegimeType `json:"entry_regime"`
	EntryOrder  types.OrderType   `json:"entry_order"` // Maker/taker entry fee selection
}

// Metadata carries per-position bookkeeping maintained alongside the
// position itself: venue-reported margin figures, the peak profit seen,
// and whether a partial take-profit has already executed.
type Metadata struct {
	MarginUsed    float64 `json:"margin_used"`     // 0 when venue data unavailable
	UnrealizedPnL float64 `json:"unrealized_pnl"`  // Venue-reported, valid with MarginUsed
	HasMarginData bool    `json:"has_margin_data"` // Margin/unrealized pair is trustworthy
	PeakProfitPct float64 `json:"peak_profit_pct"` // Highest net PnL% observed
	PartialTaken  bool    `json:"partial_taken"`   // Partial take-profit already executed
	TrailingStop  float64 `json:"trailing_stop"`   // Active trailing stop price, 0 if none
}

// Validate checks the position invariants
func (p *Position) Validate() error {
	if p.EntryPrice <= 0 {
		return boterrors.NewInvariant("position", "validate", "entry price must be positive").
			WithContext("symbol", p.Symbol).WithContext("entry_price", p.EntryPrice)
	}
	if p.Size <= 0 {
		return boterrors.NewInvariant("position", "validate", "size must be positive").
			WithContext("symbol", p.Symbol).WithContext("size", p.Size)
	}
	if p.Leverage < 1 {
		return boterrors.NewInvariant("position", "validate", "leverage must be >= 1").
			WithContext("symbol", p.Symbol).WithContext("leverage", p.Leverage)
	}
	return nil
}

// HoldingDuration returns elapsed time since entry
func (p *Position) HoldingDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// Registry is the external position store consumed by the exit engine
type Registry interface {
	// GetPosition returns the open position for symbol, if any
	GetPosition(symbol string) (*Position, bool)

	// GetMetadata returns the bookkeeping record for symbol, if any
	GetMetadata(symbol string) (*Metadata, bool)

	// MarkPartialTaken records that a partial take-profit executed
	MarkPartialTaken(symbol string)
}
