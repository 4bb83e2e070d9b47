package pnl

import (
	"time"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// Method identifies how a PnL percentage was derived
type Method int

const (
	// MethodMargin matches the venue-displayed return: unrealized/margin
	MethodMargin Method = iota
	// MethodPriceDelta is the price-move fallback scaled by leverage
	MethodPriceDelta
)

// String returns the string representation of the calculation method
func (m Method) String() string {
	switch m {
	case MethodMargin:
		return "MARGIN"
	case MethodPriceDelta:
		return "PRICE_DELTA"
	default:
		return "UNKNOWN"
	}
}

// feeFreeWindow is the initial holding window during which no fee is
// deducted, so entry noise does not immediately read as a net loss.
const feeFreeWindow = 10 * time.Second

// Config holds the venue fee schedule
type Config struct {
	MakerFeeRate float64 `json:"maker_fee_rate"` // e.g. 0.0002
	TakerFeeRate float64 `json:"taker_fee_rate"` // e.g. 0.00055
}

// DefaultConfig returns Bybit linear-perpetual fee rates
func DefaultConfig() Config {
	return Config{
		MakerFeeRate: 0.0002,
		TakerFeeRate: 0.00055,
	}
}

// Input carries everything one PnL computation needs
type Input struct {
	EntryPrice   float64
	CurrentPrice float64
	Side         types.Side
	Leverage     float64

	// Venue-reported margin figures; used when HasMarginData is true
	MarginUsed    float64
	UnrealizedPnL float64
	HasMarginData bool

	EntryOrder      types.OrderType
	HoldingDuration time.Duration
}

// Result exposes both fee-exclusive and fee-inclusive returns. Stop-loss
// evaluation reads Gross; take-profit and partial-close read Net. The
// asymmetry is intentional: profit must be real after costs before it is
// taken, while a loss must trigger protection before costs deepen it.
type Result struct {
	GrossPct float64
	NetPct   float64
	FeePct   float64
	Method   Method
}

// Calculator converts prices, side, leverage and holding time into
// percentage returns on margin.
type Calculator struct {
	config Config
}

// NewCalculator creates a PnL calculator with the given fee schedule
func NewCalculator(config Config) *Calculator {
	return &Calculator{config: config}
}

// Compute calculates gross and net PnL percent for the input
func (c *Calculator) Compute(in Input) Result {
	gross := c.grossPct(in)
	fee := c.feePct(in)
	return Result{
		GrossPct: gross,
		NetPct:   gross - fee,
		FeePct:   fee,
		Method:   c.method(in),
	}
}

// PriceMovePct returns the raw leveraged price-to-price return,
// independent of any venue-reported figures. Its sign is the ground
// truth for direction checks.
func (c *Calculator) PriceMovePct(entryPrice, currentPrice float64, side types.Side, leverage float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	return (currentPrice - entryPrice) / entryPrice * side.Sign() * leverage * 100
}

func (c *Calculator) method(in Input) Method {
	if in.HasMarginData && in.MarginUsed > 0 {
		return MethodMargin
	}
	return MethodPriceDelta
}

func (c *Calculator) grossPct(in Input) float64 {
	if in.HasMarginData && in.MarginUsed > 0 {
		return in.UnrealizedPnL / in.MarginUsed * 100
	}
	return c.PriceMovePct(in.EntryPrice, in.CurrentPrice, in.Side, in.Leverage)
}

func (c *Calculator) feePct(in Input) float64 {
	if in.HoldingDuration < feeFreeWindow {
		return 0
	}
	entryRate := c.config.TakerFeeRate
	if in.EntryOrder.IsMaker() {
		entryRate = c.config.MakerFeeRate
	}
	// Exit is always a market close, so the exit leg pays taker fees.
	return (entryRate + c.config.TakerFeeRate) * in.Leverage * 100
}
