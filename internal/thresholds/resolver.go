package thresholds

import (
	"context"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/params"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/rs/zerolog"
)

// IndicatorATR is the indicator name the resolver asks the market-data
// source for.
const IndicatorATR = "ATR"

// maxLeverageRatio caps leverage scaling so high leverage cannot blow
// thresholds out past 2.5x of their reference-tuned values.
const maxLeverageRatio = 2.5

// IndicatorSource supplies indicator values for a symbol. A missing
// indicator is reported as an error, never as a made-up value.
type IndicatorSource interface {
	GetIndicator(ctx context.Context, symbol, name string) (float64, error)
}

// Thresholds is a resolved take-profit/stop-loss pair in percent
type Thresholds struct {
	TakeProfitPct float64
	StopLossPct   float64
	ATRBased      bool // False when the bundle's fixed percentages were used
}

// Config holds per-symbol tuning for threshold resolution
type Config struct {
	// VolatilityFactors tightens targets for higher-volatility symbols
	// (factor < 1 shrinks the ATR-derived percentage). Missing symbols
	// use 1.0.
	VolatilityFactors map[string]float64 `json:"volatility_factors"`
}

// DefaultConfig returns threshold-resolution defaults
func DefaultConfig() Config {
	return Config{
		VolatilityFactors: map[string]float64{
			"BTCUSDT": 1.0,
			"ETHUSDT": 1.0,
			"SOLUSDT": 0.85,
			"DOGEUSDT": 0.75,
		},
	}
}

// Resolver turns raw volatility (ATR) and leverage into bounded
// take-profit/stop-loss percentages. When ATR is unavailable it falls
// back to the bundle's fixed percentages; it never invents a value.
type Resolver struct {
	indicators IndicatorSource
	config     Config
	log        zerolog.Logger
}

// NewResolver creates an adaptive threshold resolver
func NewResolver(indicators IndicatorSource, config Config, log zerolog.Logger) *Resolver {
	return &Resolver{indicators: indicators, config: config, log: log}
}

// Resolve produces TP/SL percentages for the given evaluation inputs.
// price must be the current trusted price for the symbol.
func (r *Resolver) Resolve(ctx context.Context, symbol string, reg regime.RegimeType, leverage, price float64, bundle *params.Bundle) (Thresholds, error) {
	if bundle == nil {
		return Thresholds{}, boterrors.NewMissingData("thresholds", "resolve", "nil parameter bundle").
			WithContext("symbol", symbol)
	}
	if price <= 0 {
		return Thresholds{}, boterrors.NewInvariant("thresholds", "resolve", "price must be positive").
			WithContext("symbol", symbol).WithContext("price", price)
	}

	levRatio := LeverageRatio(leverage, bundle.ReferenceLeverage)

	atr, err := r.indicators.GetIndicator(ctx, symbol, IndicatorATR)
	if err != nil || atr <= 0 {
		// Fixed bundle percentages, leverage-scaled and bounded
		r.log.Debug().Str("symbol", symbol).Str("regime", reg.String()).
			Msg("ATR unavailable, using bundle base thresholds")
		return Thresholds{
			TakeProfitPct: clamp(bundle.TakeProfitPct*levRatio, bundle.MinTPPct, bundle.MaxTPPct),
			StopLossPct:   clamp(bundle.StopLossPct*levRatio, bundle.MinSLPct, bundle.MaxSLPct),
			ATRBased:      false,
		}, nil
	}

	volFactor := r.volatilityFactor(symbol)
	atrPct := atr / price * 100

	return Thresholds{
		TakeProfitPct: clamp(atrPct*bundle.TPATRMultiplier*levRatio*volFactor, bundle.MinTPPct, bundle.MaxTPPct),
		StopLossPct:   clamp(atrPct*bundle.SLATRMultiplier*levRatio*volFactor, bundle.MinSLPct, bundle.MaxSLPct),
		ATRBased:      true,
	}, nil
}

func (r *Resolver) volatilityFactor(symbol string) float64 {
	if factor, ok := r.config.VolatilityFactors[symbol]; ok && factor > 0 {
		return factor
	}
	return 1.0
}

// LeverageRatio scales percentages by effective leverage relative to
// the leverage the bundle was tuned for, capped to avoid runaway
// multipliers. Every leverage-scaled path in the decision core goes
// through this one function.
func LeverageRatio(leverage, reference float64) float64 {
	if reference < 1 {
		reference = 1
	}
	if leverage < 1 {
		leverage = 1
	}
	ratio := leverage / reference
	if ratio > maxLeverageRatio {
		return maxLeverageRatio
	}
	return ratio
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
