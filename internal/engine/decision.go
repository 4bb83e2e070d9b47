package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

// Action is what the caller should do with the position
type Action int

const (
	ActionHold Action = iota
	ActionExtendTakeProfit
	ActionPartialClose
	ActionClose
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionExtendTakeProfit:
		return "EXTEND_TP"
	case ActionPartialClose:
		return "PARTIAL_CLOSE"
	case ActionClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Reason is the machine-readable cause of a decision. The set is closed;
// downstream auditing switches over it.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTrailingStopHit
	ReasonEmergencyLossProtection
	ReasonEmergencyMinHold
	ReasonEmergencyReversalHold
	ReasonTpReached
	ReasonTpExtended
	ReasonPnlSignAnomaly
	ReasonBigProfitExit
	ReasonPartialTpExecuted
	ReasonPartialTpWaitingMinHold
	ReasonSlReached
	ReasonSlMinHold
	ReasonSlAbsoluteMinHold
	ReasonSlAwaitingConfirmation
	ReasonSlGraceActive
	ReasonSmartForcedClose
	ReasonSmartCloseReversalHold
	ReasonReversalDetected
	ReasonMaxHoldingExceeded
	ReasonMaxHoldingTrendExtend
	ReasonMaxHoldingLossHold
	ReasonMaxHoldingFeeHold
	ReasonHardStopTimeout
)

// String returns the string representation of the reason code
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonTrailingStopHit:
		return "TRAILING_STOP_HIT"
	case ReasonEmergencyLossProtection:
		return "EMERGENCY_LOSS_PROTECTION"
	case ReasonEmergencyMinHold:
		return "EMERGENCY_MIN_HOLD"
	case ReasonEmergencyReversalHold:
		return "EMERGENCY_REVERSAL_HOLD"
	case ReasonTpReached:
		return "TP_REACHED"
	case ReasonTpExtended:
		return "TP_EXTENDED"
	case ReasonPnlSignAnomaly:
		return "PNL_SIGN_ANOMALY"
	case ReasonBigProfitExit:
		return "BIG_PROFIT_EXIT"
	case ReasonPartialTpExecuted:
		return "PARTIAL_TP_EXECUTED"
	case ReasonPartialTpWaitingMinHold:
		return "PARTIAL_TP_WAITING_MIN_HOLD"
	case ReasonSlReached:
		return "SL_REACHED"
	case ReasonSlMinHold:
		return "SL_MIN_HOLD"
	case ReasonSlAbsoluteMinHold:
		return "SL_ABSOLUTE_MIN_HOLD"
	case ReasonSlAwaitingConfirmation:
		return "SL_AWAITING_CONFIRMATION"
	case ReasonSlGraceActive:
		return "SL_GRACE_ACTIVE"
	case ReasonSmartForcedClose:
		return "SMART_FORCED_CLOSE"
	case ReasonSmartCloseReversalHold:
		return "SMART_CLOSE_REVERSAL_HOLD"
	case ReasonReversalDetected:
		return "REVERSAL_DETECTED"
	case ReasonMaxHoldingExceeded:
		return "MAX_HOLDING_EXCEEDED"
	case ReasonMaxHoldingTrendExtend:
		return "MAX_HOLDING_TREND_EXTEND"
	case ReasonMaxHoldingLossHold:
		return "MAX_HOLDING_LOSS_HOLD"
	case ReasonMaxHoldingFeeHold:
		return "MAX_HOLDING_FEE_HOLD"
	case ReasonHardStopTimeout:
		return "HARD_STOP_TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Diagnostics carries auxiliary evaluation values so degraded or
// ambiguous decisions are distinguishable from confident ones.
type Diagnostics struct {
	TakeProfitPct    float64 `json:"take_profit_pct"`
	StopLossPct      float64 `json:"stop_loss_pct"`
	ATRBased         bool    `json:"atr_based"`
	ReversalScore    int     `json:"reversal_score"`
	TrendAgainst     float64 `json:"trend_against"`
	TrendInFavor     float64 `json:"trend_in_favor"`
	GraceActive      bool    `json:"grace_active"`
	PriceSource      string  `json:"price_source"`
	PnLMethod        string  `json:"pnl_method"`
	NewTakeProfitPct float64 `json:"new_take_profit_pct,omitempty"` // Set when extending TP
}

// Decision is the immutable outcome of one evaluation tick. It is
// consumed by an external close/partial-close executor; the engine
// never calls the exchange itself.
type Decision struct {
	ID          uuid.UUID         `json:"id"`
	Symbol      string            `json:"symbol"`
	Action      Action            `json:"action"`
	Fraction    float64           `json:"fraction,omitempty"` // Position fraction for partial close
	Reason      Reason            `json:"reason"`
	GrossPnLPct float64           `json:"gross_pnl_pct"`
	NetPnLPct   float64           `json:"net_pnl_pct"`
	Regime      regime.RegimeType `json:"regime"`
	Emergency   bool              `json:"emergency"`
	Diagnostics Diagnostics       `json:"diagnostics"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Closes reports whether the decision fully closes the position
func (d *Decision) Closes() bool {
	return d != nil && d.Action == ActionClose
}
