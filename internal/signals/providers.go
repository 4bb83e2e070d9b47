package signals

import (
	"context"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// The decision core consumes technical signal detectors as independent
// boolean/scalar providers. Every provider is optional: a nil provider
// or a provider error contributes a neutral "no support" vote.

// TrendStrengthProvider estimates trend strength and direction from
// order-flow/trend indicators.
type TrendStrengthProvider interface {
	// TrendStrength returns strength in [0,1] and direction
	// (1=up, -1=down, 0=sideways).
	TrendStrength(ctx context.Context, symbol string) (strength float64, direction int, err error)
}

// ConfirmationFilter is the multi-timeframe trend filter consulted
// before a stop-loss may fire.
type ConfirmationFilter interface {
	// Confirm reports whether higher timeframes confirm closing the
	// position. An error means the filter is unavailable.
	Confirm(ctx context.Context, symbol string, side types.Side) (bool, error)
}

// FundingRateProvider supplies the current funding rate
type FundingRateProvider interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
}

// CorrelationProvider detects cross-asset correlation breakdowns
type CorrelationProvider interface {
	CorrelationBreakdown(ctx context.Context, symbol string) (bool, error)
}

// LiquidityProvider scans resting order-book liquidity for sweep setups
type LiquidityProvider interface {
	SweepPotential(ctx context.Context, symbol string, side types.Side) (bool, error)
}

// CandlestickProvider recognizes reversal candlestick patterns
type CandlestickProvider interface {
	ReversalPattern(ctx context.Context, symbol string, side types.Side) (bool, error)
}

// VolumeProfileProvider reports proximity to volume-profile
// support/resistance levels
type VolumeProfileProvider interface {
	NearValueLevel(ctx context.Context, symbol string, price float64, side types.Side) (bool, error)
}

// PivotProvider reports proximity to pivot levels
type PivotProvider interface {
	NearPivot(ctx context.Context, symbol string, price float64) (bool, error)
}

// CompositeReversalProvider aggregates a venue's own composite reversal
// signal (e.g. RSI divergence + order-flow flip), distinct from the
// individual pattern checks.
type CompositeReversalProvider interface {
	ReversalSignal(ctx context.Context, symbol string, side types.Side) (bool, error)
}

// Providers bundles every optional signal source the aggregator polls
type Providers struct {
	Trend         TrendStrengthProvider
	Composite     CompositeReversalProvider
	Funding       FundingRateProvider
	Correlation   CorrelationProvider
	Liquidity     LiquidityProvider
	Candlestick   CandlestickProvider
	VolumeProfile VolumeProfileProvider
	Pivot         PivotProvider
}
