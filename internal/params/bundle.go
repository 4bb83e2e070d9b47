package params

import (
	"context"
	"fmt"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

// Bundle holds the fully resolved, regime- and symbol-scoped parameters
// an evaluation needs. A bundle is either valid as a whole or rejected
// wholesale: the engine never substitutes defaults for missing fields.
type Bundle struct {
	// Base take-profit / stop-loss percentages (positive magnitudes)
	TakeProfitPct float64 `json:"take_profit_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`

	// ATR scaling for adaptive thresholds
	TPATRMultiplier float64 `json:"tp_atr_multiplier"`
	SLATRMultiplier float64 `json:"sl_atr_multiplier"`

	// Bounds for adaptive thresholds
	MinTPPct float64 `json:"min_tp_pct"`
	MaxTPPct float64 `json:"max_tp_pct"`
	MinSLPct float64 `json:"min_sl_pct"`
	MaxSLPct float64 `json:"max_sl_pct"`

	// Holding-time gates
	MinHoldingMinutes float64 `json:"min_holding_minutes"`
	MaxHoldingMinutes float64 `json:"max_holding_minutes"`

	// Emergency loss protection (positive magnitude, e.g. 7.0 means -7%)
	EmergencyLossPct        float64 `json:"emergency_loss_pct"`
	EmergencyMinHoldSeconds float64 `json:"emergency_min_hold_seconds"` // 60-120 by regime

	// Smart-close thresholds
	SmartCloseScoreThreshold int     `json:"smart_close_score_threshold"` // 0-7
	SmartCloseTrendThreshold float64 `json:"smart_close_trend_threshold"` // 0-1

	// Partial take-profit
	PartialTPEnabled    bool    `json:"partial_tp_enabled"`
	PartialTPTriggerPct float64 `json:"partial_tp_trigger_pct"`

	// Reversal-in-profit exit: minimum net profit before a detected
	// reversal may close the position (0 = unconditional)
	ReversalMinProfitPct float64 `json:"reversal_min_profit_pct"`

	// Max-holding extension when already profitable
	ProfitExtensionTriggerPct float64 `json:"profit_extension_trigger_pct"`
	ProfitExtensionPct        float64 `json:"profit_extension_pct"` // Percent added to max holding

	// Max-holding stop mode
	HardStopEnabled bool    `json:"hard_stop_enabled"`
	TimeoutLossPct  float64 `json:"timeout_loss_pct"` // Small-loss tolerance under hard stop

	// Leverage the percentages were tuned for
	ReferenceLeverage float64 `json:"reference_leverage"`
}

// Validate checks that every required field is present and coherent.
// Any failure invalidates the bundle wholesale for that evaluation.
func (b *Bundle) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{b.TakeProfitPct > 0, "take_profit_pct must be positive"},
		{b.StopLossPct > 0, "stop_loss_pct must be positive"},
		{b.TPATRMultiplier > 0, "tp_atr_multiplier must be positive"},
		{b.SLATRMultiplier > 0, "sl_atr_multiplier must be positive"},
		{b.MinTPPct > 0 && b.MaxTPPct >= b.MinTPPct, "tp bounds must satisfy 0 < min <= max"},
		{b.MinSLPct > 0 && b.MaxSLPct >= b.MinSLPct, "sl bounds must satisfy 0 < min <= max"},
		{b.MinHoldingMinutes >= 0, "min_holding_minutes must be non-negative"},
		{b.MaxHoldingMinutes > 0, "max_holding_minutes must be positive"},
		{b.EmergencyLossPct > 0, "emergency_loss_pct must be a positive magnitude"},
		{b.EmergencyMinHoldSeconds > 0, "emergency_min_hold_seconds must be positive"},
		{b.SmartCloseScoreThreshold >= 0 && b.SmartCloseScoreThreshold <= 7, "smart_close_score_threshold must be in [0,7]"},
		{b.SmartCloseTrendThreshold >= 0 && b.SmartCloseTrendThreshold <= 1, "smart_close_trend_threshold must be in [0,1]"},
		{!b.PartialTPEnabled || b.PartialTPTriggerPct > 0, "partial_tp_trigger_pct must be positive when enabled"},
		{b.ReversalMinProfitPct >= 0, "reversal_min_profit_pct must be non-negative"},
		{b.ProfitExtensionTriggerPct >= 0, "profit_extension_trigger_pct must be non-negative"},
		{b.ProfitExtensionPct >= 0, "profit_extension_pct must be non-negative"},
		{b.TimeoutLossPct >= 0, "timeout_loss_pct must be non-negative"},
		{b.ReferenceLeverage >= 1, "reference_leverage must be >= 1"},
	}
	for _, check := range checks {
		if !check.ok {
			return boterrors.NewParameters("params", "validate", check.msg)
		}
	}
	return nil
}

// Resolver supplies parameter bundles. Implementations live outside the
// decision core; the engine treats resolution failures as missing data.
type Resolver interface {
	ResolveParameters(ctx context.Context, symbol string, r regime.RegimeType, balance float64) (*Bundle, error)
}

// ResolveValidated resolves a bundle and applies all-or-nothing validation
func ResolveValidated(ctx context.Context, resolver Resolver, symbol string, r regime.RegimeType, balance float64) (*Bundle, error) {
	bundle, err := resolver.ResolveParameters(ctx, symbol, r, balance)
	if err != nil {
		return nil, fmt.Errorf("resolve parameters for %s/%s: %w", symbol, r, err)
	}
	if bundle == nil {
		return nil, boterrors.NewMissingData("params", "resolve", "resolver returned no bundle").
			WithContext("symbol", symbol).WithContext("regime", r.String())
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}
