package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/grace"
	"github.com/krivonosoff161/futures-exit-bot/internal/params"
	"github.com/krivonosoff161/futures-exit-bot/internal/pnl"
	"github.com/krivonosoff161/futures-exit-bot/internal/position"
	"github.com/krivonosoff161/futures-exit-bot/internal/pricing"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/krivonosoff161/futures-exit-bot/internal/signals"
	"github.com/krivonosoff161/futures-exit-bot/internal/thresholds"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// MarketData supplies prices and the current regime. Both lookups may
// fail; the engine resolves any failure to "no decision".
type MarketData interface {
	GetPrice(ctx context.Context, symbol string, callCtx pricing.CallContext) (*pricing.Snapshot, error)
	GetRegime(ctx context.Context, symbol string) (regime.RegimeType, error)
}

// TrailingStopSource looks up the active trailing stop for a symbol
type TrailingStopSource interface {
	TrailingStop(symbol string) (price float64, active bool)
}

// AccountSource supplies the balance used for parameter resolution
type AccountSource interface {
	Balance(ctx context.Context) (float64, error)
}

// Config holds fixed engine tuning that is not regime-scoped
type Config struct {
	// Absolute floor before any stop-loss may fire, independent of
	// regime, so spread/commission noise right after entry is ignored.
	MinSLHoldSeconds float64 `json:"min_sl_hold_seconds"` // 90

	// Loss magnitude that bypasses every minimum-holding gate
	CriticalLossPct float64 `json:"critical_loss_pct"` // 20

	// Execution-cost buffers, applied per entry/exit leg
	SpreadBufferPct float64 `json:"spread_buffer_pct"` // 0.05
	FeeBufferPct    float64 `json:"fee_buffer_pct"`    // 0.2

	// Big absolute profit ceiling, by symbol tier
	BigProfitMajorsPct float64  `json:"big_profit_majors_pct"` // 1.5
	BigProfitAltsPct   float64  `json:"big_profit_alts_pct"`   // 2.0
	MajorSymbols       []string `json:"major_symbols"`

	// Trend strength at which a reached TP is extended instead of taken
	TrendExtendThreshold float64 `json:"trend_extend_threshold"` // 0.7
	// TP extension factor when extending (0.2 = +20%)
	TPExtendFactor float64 `json:"tp_extend_factor"`

	// Gross-loss multiple of SL% that triggers the smart forced close
	SmartCloseLossFactor float64 `json:"smart_close_loss_factor"` // 1.5

	// Reversal score at which a reversal counts as detected for the
	// profitable-exit branch
	ReversalFireScore int `json:"reversal_fire_score"` // 3

	// Minimum net profit, fees already subtracted, a max-holding close
	// must clear before it is allowed to realize a "profit"
	FeeCoverMarginPct float64 `json:"fee_cover_margin_pct"` // 0.05
}

// DefaultConfig returns production engine defaults
func DefaultConfig() Config {
	return Config{
		MinSLHoldSeconds:     90,
		CriticalLossPct:      20,
		SpreadBufferPct:      0.05,
		FeeBufferPct:         0.2,
		BigProfitMajorsPct:   1.5,
		BigProfitAltsPct:     2.0,
		MajorSymbols:         []string{"BTCUSDT", "ETHUSDT"},
		TrendExtendThreshold: 0.7,
		TPExtendFactor:       0.2,
		SmartCloseLossFactor: 1.5,
		ReversalFireScore:    3,
		FeeCoverMarginPct:    0.05,
	}
}

// Deps wires the engine's collaborators. Positions, Market, Params,
// Thresholds, PnL, Signals and Grace are required; the rest are
// optional and degrade gracefully when nil.
type Deps struct {
	Positions  position.Registry
	Market     MarketData
	Params     params.Resolver
	Thresholds *thresholds.Resolver
	PnL        *pnl.Calculator
	Signals    *signals.Aggregator
	Grace      *grace.Manager

	Confirmation signals.ConfirmationFilter
	Trailing     TrailingStopSource
	Account      AccountSource
}

// Engine is the per-position exit state machine. One Evaluate call per
// position per tick; evaluations for the same symbol are serialized.
type Engine struct {
	config Config
	deps   Deps
	log    zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a position exit engine
func New(config Config, deps Deps, log zerolog.Logger) *Engine {
	return &Engine{
		config: config,
		deps:   deps,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// evalInput is the consistent snapshot one ladder walk operates on
type evalInput struct {
	pos        *position.Position
	meta       *position.Metadata
	price      *pricing.Snapshot
	regime     regime.RegimeType
	bundle     *params.Bundle
	thresholds thresholds.Thresholds
	pnl        pnl.Result
	rawMovePct float64
	holding    time.Duration
	now        time.Time

	// verdict is polled lazily: only the branches that need reversal
	// signals pay for the provider round-trips.
	verdictOnce sync.Once
	verdict     signals.Verdict
	aggregate   func() signals.Verdict
}

func (in *evalInput) signals() signals.Verdict {
	in.verdictOnce.Do(func() { in.verdict = in.aggregate() })
	return in.verdict
}

// Evaluate runs one evaluation tick for symbol. A nil decision with a
// nil error means implicit hold (nothing to do); a nil decision with an
// error means the evaluation degraded to hold and why. Evaluate never
// panics: internal failures are logged and resolved to no decision.
func (e *Engine) Evaluate(ctx context.Context, symbol string) (decision *Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("symbol", symbol).Interface("panic", r).
				Msg("evaluation panicked, resolving to hold")
			decision = nil
			err = boterrors.New(boterrors.ErrorCategoryInvariant, "engine", "evaluate", "internal panic").
				WithContext("panic", r)
		}
	}()

	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	in, err := e.gather(ctx, symbol)
	if err != nil || in == nil {
		return nil, err
	}

	decision = e.runLadder(ctx, in)
	if decision == nil {
		return nil, nil
	}

	decision.ID = uuid.New()
	decision.Symbol = symbol
	decision.Timestamp = in.now
	decision.GrossPnLPct = in.pnl.GrossPct
	decision.NetPnLPct = in.pnl.NetPct
	decision.Regime = in.regime
	decision.Diagnostics.TakeProfitPct = in.thresholds.TakeProfitPct
	decision.Diagnostics.StopLossPct = in.thresholds.StopLossPct
	decision.Diagnostics.ATRBased = in.thresholds.ATRBased
	decision.Diagnostics.PriceSource = in.price.Source.String()
	decision.Diagnostics.PnLMethod = in.pnl.Method.String()

	e.log.Info().Str("symbol", symbol).
		Str("action", decision.Action.String()).
		Str("reason", decision.Reason.String()).
		Float64("gross_pnl_pct", decision.GrossPnLPct).
		Float64("net_pnl_pct", decision.NetPnLPct).
		Str("regime", decision.Regime.String()).
		Bool("emergency", decision.Emergency).
		Msg("exit decision")

	return decision, nil
}

// gather resolves every required input or reports why it could not.
// The engine never guesses: any gap is a missing-data hold.
func (e *Engine) gather(ctx context.Context, symbol string) (*evalInput, error) {
	pos, ok := e.deps.Positions.GetPosition(symbol)
	if !ok || pos == nil {
		return nil, nil // No open position, nothing to evaluate
	}
	if err := pos.Validate(); err != nil {
		e.log.Error().Str("symbol", symbol).Err(err).Msg("position failed invariant check")
		return nil, err
	}

	meta, ok := e.deps.Positions.GetMetadata(symbol)
	if !ok || meta == nil {
		meta = &position.Metadata{}
	}

	price, err := e.deps.Market.GetPrice(ctx, symbol, pricing.ContextExit)
	if err != nil || price == nil || price.Price <= 0 {
		return nil, boterrors.NewMissingData("engine", "gather", "no trusted price").
			WithContext("symbol", symbol)
	}

	reg, err := e.deps.Market.GetRegime(ctx, symbol)
	if err != nil || !reg.Valid() {
		return nil, boterrors.NewMissingData("engine", "gather", "no regime").
			WithContext("symbol", symbol)
	}

	balance := 0.0
	if e.deps.Account != nil {
		if b, err := e.deps.Account.Balance(ctx); err == nil {
			balance = b
		}
	}

	bundle, err := params.ResolveValidated(ctx, e.deps.Params, symbol, reg, balance)
	if err != nil {
		return nil, err
	}

	th, err := e.deps.Thresholds.Resolve(ctx, symbol, reg, pos.Leverage, price.Price, bundle)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	holding := pos.HoldingDuration(now)

	pnlResult := e.deps.PnL.Compute(pnl.Input{
		EntryPrice:      pos.EntryPrice,
		CurrentPrice:    price.Price,
		Side:            pos.Side,
		Leverage:        pos.Leverage,
		MarginUsed:      meta.MarginUsed,
		UnrealizedPnL:   meta.UnrealizedPnL,
		HasMarginData:   meta.HasMarginData,
		EntryOrder:      pos.EntryOrder,
		HoldingDuration: holding,
	})
	rawMove := e.deps.PnL.PriceMovePct(pos.EntryPrice, price.Price, pos.Side, pos.Leverage)

	in := &evalInput{
		pos:        pos,
		meta:       meta,
		price:      price,
		regime:     reg,
		bundle:     bundle,
		thresholds: th,
		pnl:        pnlResult,
		rawMovePct: rawMove,
		holding:    holding,
		now:        now,
	}
	in.aggregate = func() signals.Verdict {
		if e.deps.Signals == nil {
			return signals.Verdict{AllFailed: true}
		}
		return e.deps.Signals.Evaluate(ctx, symbol, pos.Side, price.Price)
	}
	return in, nil
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[symbol] = lock
	}
	return lock
}

// trailingStop returns the active trailing stop, consulting the
// external source first and falling back to position metadata.
func (e *Engine) trailingStop(in *evalInput) (float64, bool) {
	if e.deps.Trailing != nil {
		if price, active := e.deps.Trailing.TrailingStop(in.pos.Symbol); active && price > 0 {
			return price, true
		}
	}
	if in.meta.TrailingStop > 0 {
		return in.meta.TrailingStop, true
	}
	return 0, false
}

// isMajor reports whether symbol belongs to the large-cap tier
func (e *Engine) isMajor(symbol string) bool {
	for _, major := range e.config.MajorSymbols {
		if major == symbol {
			return true
		}
	}
	return false
}

// sideCrossedStop reports whether price has crossed stop against side
func sideCrossedStop(side types.Side, price, stop float64) bool {
	if side == types.SideLong {
		return price <= stop
	}
	return price >= stop
}
