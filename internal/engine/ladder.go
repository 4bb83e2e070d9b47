package engine

import (
	"context"
	"time"

	"github.com/krivonosoff161/futures-exit-bot/internal/params"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/krivonosoff161/futures-exit-bot/internal/signals"
	"github.com/krivonosoff161/futures-exit-bot/internal/thresholds"
)

// runLadder walks the fixed priority ladder; the first matching branch
// wins. A nil return is the implicit hold. Side effects (metrics,
// audit) belong to the caller, keyed off the returned Decision.
func (e *Engine) runLadder(ctx context.Context, in *evalInput) *Decision {
	if d := e.checkTrailingStop(in); d != nil {
		return d
	}
	if d := e.checkEmergencyLoss(in); d != nil {
		return d
	}
	if d := e.checkTakeProfit(in); d != nil {
		return d
	}
	if d := e.checkBigProfit(in); d != nil {
		return d
	}
	if d := e.checkPartialTakeProfit(in); d != nil {
		return d
	}
	if d := e.checkSmartForcedClose(in); d != nil {
		return d
	}
	if d := e.checkStopLoss(ctx, in); d != nil {
		return d
	}
	if d := e.checkReversalInProfit(in); d != nil {
		return d
	}
	if d := e.checkMaxHolding(in); d != nil {
		return d
	}
	return nil
}

// 1. Trailing-stop hit bypasses all later checks.
func (e *Engine) checkTrailingStop(in *evalInput) *Decision {
	stop, active := e.trailingStop(in)
	if !active {
		return nil
	}
	if sideCrossedStop(in.pos.Side, in.price.Price, stop) {
		return &Decision{Action: ActionClose, Reason: ReasonTrailingStopHit}
	}
	return nil
}

// 2. Emergency loss protection. Net loss below the buffered threshold
// closes fast, gated only by a small minimum-holding window that a
// critical loss bypasses entirely.
func (e *Engine) checkEmergencyLoss(in *evalInput) *Decision {
	if in.pnl.NetPct <= -e.config.CriticalLossPct {
		// Critical loss closes regardless of holding time
		return &Decision{Action: ActionClose, Reason: ReasonEmergencyLossProtection, Emergency: true}
	}

	threshold := e.emergencyThreshold(in.bundle, in.pos.Leverage)
	if threshold <= 0 {
		// Buffers swallowed the scaled base entirely; a zero trigger
		// cannot tell a loss from flat, so only the critical path above
		// stays armed.
		return nil
	}
	if in.pnl.NetPct > -threshold {
		return nil
	}

	if in.holding < secondsDuration(in.bundle.EmergencyMinHoldSeconds) {
		return &Decision{Action: ActionHold, Reason: ReasonEmergencyMinHold, Emergency: true}
	}

	v := in.signals()
	if v.FavorsRecovery(in.bundle.SmartCloseScoreThreshold, in.bundle.SmartCloseTrendThreshold) {
		return &Decision{
			Action: ActionHold, Reason: ReasonEmergencyReversalHold, Emergency: true,
			Diagnostics: verdictDiagnostics(v),
		}
	}
	return &Decision{
		Action: ActionClose, Reason: ReasonEmergencyLossProtection, Emergency: true,
		Diagnostics: verdictDiagnostics(v),
	}
}

// emergencyThreshold is the positive loss magnitude beyond which
// emergency protection engages. The base is leverage-scaled like every
// other percentage; spread and fee buffers are paid on both legs of
// the round trip, so they pull the trigger closer.
func (e *Engine) emergencyThreshold(bundle *params.Bundle, leverage float64) float64 {
	base := bundle.EmergencyLossPct * thresholds.LeverageRatio(leverage, bundle.ReferenceLeverage)
	buffered := base - 2*(e.config.SpreadBufferPct+e.config.FeeBufferPct)
	if buffered < 0 {
		return 0
	}
	return buffered
}

// 3. Take-profit reached. The raw price-direction sign guards against
// an adaptive PnL input that contradicts actual price movement.
func (e *Engine) checkTakeProfit(in *evalInput) *Decision {
	if in.pnl.NetPct < in.thresholds.TakeProfitPct {
		return nil
	}

	if in.rawMovePct < 0 {
		e.log.Error().Str("symbol", in.pos.Symbol).
			Float64("net_pnl_pct", in.pnl.NetPct).
			Float64("raw_move_pct", in.rawMovePct).
			Msg("TP input contradicts raw price movement, holding")
		return &Decision{Action: ActionHold, Reason: ReasonPnlSignAnomaly}
	}

	if in.regime == regime.RegimeTrending {
		v := in.signals()
		if v.TrendInFavor >= e.config.TrendExtendThreshold {
			d := &Decision{Action: ActionExtendTakeProfit, Reason: ReasonTpExtended, Diagnostics: verdictDiagnostics(v)}
			d.Diagnostics.NewTakeProfitPct = in.thresholds.TakeProfitPct * (1 + e.config.TPExtendFactor)
			return d
		}
	}
	return &Decision{Action: ActionClose, Reason: ReasonTpReached}
}

// 4. Big absolute profit is a ceiling above which regime logic is not
// trusted to keep riding.
func (e *Engine) checkBigProfit(in *evalInput) *Decision {
	tier := e.config.BigProfitAltsPct
	if e.isMajor(in.pos.Symbol) {
		tier = e.config.BigProfitMajorsPct
	}
	if in.pnl.NetPct >= tier {
		return &Decision{Action: ActionClose, Reason: ReasonBigProfitExit}
	}
	return nil
}

// 5. Partial take-profit, gated on an adaptive minimum hold that
// shrinks as profit grows.
func (e *Engine) checkPartialTakeProfit(in *evalInput) *Decision {
	if !in.bundle.PartialTPEnabled || in.meta.PartialTaken {
		return nil
	}
	if in.pnl.NetPct < in.bundle.PartialTPTriggerPct {
		return nil
	}
	if in.holding < adaptiveMinHold(in.pnl.NetPct, in.bundle) {
		return &Decision{Action: ActionHold, Reason: ReasonPartialTpWaitingMinHold}
	}
	return &Decision{
		Action:   ActionPartialClose,
		Reason:   ReasonPartialTpExecuted,
		Fraction: partialFraction(in.regime, in.pnl.NetPct),
	}
}

// 7 (checked ahead of the SL gates it overrides). Smart forced close:
// a gross loss well past stop-loss range closes once the adaptive
// minimum hold has elapsed and no reversal support exists.
func (e *Engine) checkSmartForcedClose(in *evalInput) *Decision {
	trigger := e.config.SmartCloseLossFactor * in.thresholds.StopLossPct
	if in.pnl.GrossPct > -trigger {
		return nil
	}
	if in.holding < adaptiveMinHold(in.pnl.NetPct, in.bundle) {
		return nil // Regular SL gating below takes over
	}

	v := in.signals()
	if v.ForcesClose(in.bundle.SmartCloseScoreThreshold, in.bundle.SmartCloseTrendThreshold) {
		return &Decision{Action: ActionClose, Reason: ReasonSmartForcedClose, Diagnostics: verdictDiagnostics(v)}
	}
	return &Decision{Action: ActionHold, Reason: ReasonSmartCloseReversalHold, Diagnostics: verdictDiagnostics(v)}
}

// 6. Stop-loss with its gate sequence: regime minimum hold, reversal
// escalation, the absolute 90s floor, then confirmation/grace.
func (e *Engine) checkStopLoss(ctx context.Context, in *evalInput) *Decision {
	trigger := in.thresholds.StopLossPct + e.config.SpreadBufferPct
	if in.pnl.GrossPct > -trigger {
		return nil
	}

	if in.holding < minutesDuration(in.bundle.MinHoldingMinutes) {
		return &Decision{Action: ActionHold, Reason: ReasonSlMinHold}
	}

	v := in.signals()
	if v.FavorsRecovery(in.bundle.SmartCloseScoreThreshold, in.bundle.SmartCloseTrendThreshold) {
		return &Decision{Action: ActionHold, Reason: ReasonSmartCloseReversalHold, Diagnostics: verdictDiagnostics(v)}
	}

	if in.holding < secondsDuration(e.config.MinSLHoldSeconds) {
		return &Decision{Action: ActionHold, Reason: ReasonSlAbsoluteMinHold, Diagnostics: verdictDiagnostics(v)}
	}

	confirmed, available := e.confirmClose(ctx, in)
	if !available {
		e.deps.Grace.NoteAttempt(in.pos.Symbol, "confirmation filter unavailable")
		if e.deps.Grace.IsActive(in.pos.Symbol) {
			d := &Decision{Action: ActionHold, Reason: ReasonSlGraceActive, Diagnostics: verdictDiagnostics(v)}
			d.Diagnostics.GraceActive = true
			return d
		}
		// Grace window elapsed: stop-loss proceeds without confirmation
	} else if !confirmed {
		return &Decision{Action: ActionHold, Reason: ReasonSlAwaitingConfirmation, Diagnostics: verdictDiagnostics(v)}
	}

	return &Decision{Action: ActionClose, Reason: ReasonSlReached, Diagnostics: verdictDiagnostics(v)}
}

// confirmClose consults the multi-timeframe confirmation filter.
// available=false means the filter could not answer at all.
func (e *Engine) confirmClose(ctx context.Context, in *evalInput) (confirmed, available bool) {
	if e.deps.Confirmation == nil {
		return false, false
	}
	ok, err := e.deps.Confirmation.Confirm(ctx, in.pos.Symbol, in.pos.Side)
	if err != nil {
		return false, false
	}
	return ok, true
}

// 8. Reversal detected while profitable takes the profit before the
// move gives it back.
func (e *Engine) checkReversalInProfit(in *evalInput) *Decision {
	if in.pnl.NetPct <= 0 || in.pnl.NetPct <= in.bundle.ReversalMinProfitPct {
		return nil
	}
	v := in.signals()
	if v.AllFailed {
		return nil
	}
	if v.Score >= e.config.ReversalFireScore {
		return &Decision{Action: ActionClose, Reason: ReasonReversalDetected, Diagnostics: verdictDiagnostics(v)}
	}
	return nil
}

// 9. Maximum holding time. Losses are never force-realized here unless
// hard-stop mode says so; stop-loss owns loss handling.
func (e *Engine) checkMaxHolding(in *evalInput) *Decision {
	maxHold := minutesDuration(in.bundle.MaxHoldingMinutes)
	if in.bundle.ProfitExtensionPct > 0 && in.pnl.NetPct >= in.bundle.ProfitExtensionTriggerPct {
		maxHold += time.Duration(float64(maxHold) * in.bundle.ProfitExtensionPct / 100)
	}
	if in.holding <= maxHold {
		return nil
	}

	v := in.signals()

	if in.pnl.NetPct > 0 && v.TrendInFavor >= e.config.TrendExtendThreshold {
		d := &Decision{Action: ActionExtendTakeProfit, Reason: ReasonMaxHoldingTrendExtend, Diagnostics: verdictDiagnostics(v)}
		d.Diagnostics.NewTakeProfitPct = in.thresholds.TakeProfitPct * (1 + e.config.TPExtendFactor)
		return d
	}

	if in.pnl.NetPct < 0 {
		if !in.bundle.HardStopEnabled {
			return &Decision{Action: ActionHold, Reason: ReasonMaxHoldingLossHold, Diagnostics: verdictDiagnostics(v)}
		}
		if -in.pnl.NetPct <= in.bundle.TimeoutLossPct {
			return &Decision{Action: ActionHold, Reason: ReasonMaxHoldingLossHold, Diagnostics: verdictDiagnostics(v)}
		}
		if e.stopConditionPending(in) {
			return &Decision{Action: ActionHold, Reason: ReasonMaxHoldingLossHold, Diagnostics: verdictDiagnostics(v)}
		}
		return &Decision{Action: ActionClose, Reason: ReasonHardStopTimeout, Diagnostics: verdictDiagnostics(v)}
	}

	// Net already has fees subtracted; the margin is the extra net
	// profit the close must clear to be worth realizing
	if in.pnl.NetPct <= e.config.FeeCoverMarginPct {
		return &Decision{Action: ActionHold, Reason: ReasonMaxHoldingFeeHold, Diagnostics: verdictDiagnostics(v)}
	}

	return &Decision{Action: ActionClose, Reason: ReasonMaxHoldingExceeded, Diagnostics: verdictDiagnostics(v)}
}

// stopConditionPending reports whether a trailing stop is active or the
// gross loss sits inside stop-loss range, in which case the timeout
// defers to those mechanisms.
func (e *Engine) stopConditionPending(in *evalInput) bool {
	if _, active := e.trailingStop(in); active {
		return true
	}
	return in.pnl.GrossPct <= -(0.8 * in.thresholds.StopLossPct)
}

// adaptiveMinHold shrinks the minimum holding requirement as profit
// grows: full below 0.5% profit, 75% at >=0.5%, 50% at >=1.0%.
func adaptiveMinHold(netPct float64, bundle *params.Bundle) time.Duration {
	base := minutesDuration(bundle.MinHoldingMinutes)
	switch {
	case netPct >= 1.0:
		return base / 2
	case netPct >= 0.5:
		return base * 3 / 4
	default:
		return base
	}
}

// partialFraction is the regime-dependent, profit-scaled fraction to
// close on a partial take-profit.
func partialFraction(reg regime.RegimeType, netPct float64) float64 {
	high := netPct >= 1.0
	switch reg {
	case regime.RegimeTrending:
		if high {
			return 0.40
		}
		return 0.25
	case regime.RegimeRanging:
		if high {
			return 0.50
		}
		return 0.30
	case regime.RegimeChoppy:
		if high {
			return 0.60
		}
		return 0.40
	default:
		return 0.30
	}
}

func verdictDiagnostics(v signals.Verdict) Diagnostics {
	return Diagnostics{
		ReversalScore: v.Score,
		TrendAgainst:  v.TrendAgainst,
		TrendInFavor:  v.TrendInFavor,
	}
}

func minutesDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}

func secondsDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
