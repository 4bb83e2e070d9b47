package signals

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// MaxScore is the number of independent reversal checks polled
const MaxScore = 7

// Verdict is the composite "should we expect a bounce/reversal" answer.
// Score counts checks that expect the current price move to reverse.
// For a losing position that reversal is a recovery in our favor; for a
// profitable one it is a move against us.
type Verdict struct {
	Score        int     // 0..7 reversal checks in agreement
	TrendAgainst float64 // Trend strength opposing the position, [0,1]
	TrendInFavor float64 // Trend strength supporting the position, [0,1]
	Failures     int     // Provider checks that errored or panicked
	AllFailed    bool    // Every check failed; callers must default to hold
}

// ForcesClose applies the smart-close rule: close only when too few
// checks expect a reversal AND the trend against the position is strong.
func (v Verdict) ForcesClose(scoreThreshold int, trendThreshold float64) bool {
	if v.AllFailed {
		return false // Hold is the safe default when blind
	}
	return v.Score <= scoreThreshold && v.TrendAgainst >= trendThreshold
}

// FavorsRecovery is the inverse reading used by loss-protection gates
func (v Verdict) FavorsRecovery(scoreThreshold int, trendThreshold float64) bool {
	return !v.ForcesClose(scoreThreshold, trendThreshold)
}

// Config tunes how raw provider outputs become boolean votes
type Config struct {
	// FundingBiasThreshold is the absolute funding rate above which the
	// crowd is considered positioned against the price move.
	FundingBiasThreshold float64 `json:"funding_bias_threshold"`
}

// DefaultConfig returns aggregator defaults
func DefaultConfig() Config {
	return Config{FundingBiasThreshold: 0.0001}
}

// Aggregator polls up to seven independent reversal checks plus a trend
// estimate and produces a composite Verdict. Checks run concurrently
// and without ordering dependency; any individual failure contributes a
// neutral vote and never aborts the aggregate.
type Aggregator struct {
	providers Providers
	config    Config
	log       zerolog.Logger
}

// NewAggregator creates a reversal-signal aggregator
func NewAggregator(providers Providers, config Config, log zerolog.Logger) *Aggregator {
	return &Aggregator{providers: providers, config: config, log: log}
}

type check struct {
	name string
	run  func(ctx context.Context) (bool, error)
}

// Evaluate polls all providers for the given position
func (a *Aggregator) Evaluate(ctx context.Context, symbol string, side types.Side, price float64) Verdict {
	checks := a.buildChecks(symbol, side, price)

	type outcome struct {
		name    string
		support bool
		err     error
	}

	results := make(chan outcome, len(checks))
	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func(c check) {
			defer wg.Done()
			support, err := a.safeRun(ctx, c)
			results <- outcome{name: c.name, support: support, err: err}
		}(c)
	}
	wg.Wait()
	close(results)

	verdict := Verdict{}
	for res := range results {
		if res.err != nil {
			verdict.Failures++
			a.log.Debug().Str("symbol", symbol).Str("check", res.name).Err(res.err).
				Msg("reversal check unavailable, counting as no support")
			continue
		}
		if res.support {
			verdict.Score++
		}
	}
	verdict.AllFailed = len(checks) > 0 && verdict.Failures == len(checks)

	verdict.TrendAgainst, verdict.TrendInFavor = a.trend(ctx, symbol, side)
	return verdict
}

// safeRun executes a check, converting panics into errors
func (a *Aggregator) safeRun(ctx context.Context, c check) (support bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			support = false
			err = &panicError{check: c.name, value: r}
		}
	}()
	return c.run(ctx)
}

func (a *Aggregator) trend(ctx context.Context, symbol string, side types.Side) (against, inFavor float64) {
	if a.providers.Trend == nil {
		return 0, 0
	}
	strength, direction, err := a.providers.Trend.TrendStrength(ctx, symbol)
	if err != nil {
		a.log.Debug().Str("symbol", symbol).Err(err).Msg("trend strength unavailable")
		return 0, 0
	}
	if strength < 0 {
		strength = 0
	} else if strength > 1 {
		strength = 1
	}

	positionDirection := 1
	if side == types.SideShort {
		positionDirection = -1
	}
	switch {
	case direction == 0:
		return 0, 0
	case direction == positionDirection:
		return 0, strength
	default:
		return strength, 0
	}
}

// buildChecks assembles the seven polled checks; absent providers
// produce a constant no-support vote so the score can only shrink.
func (a *Aggregator) buildChecks(symbol string, side types.Side, price float64) []check {
	p := a.providers
	return []check{
		{"composite_reversal", func(ctx context.Context) (bool, error) {
			if p.Composite == nil {
				return false, nil
			}
			return p.Composite.ReversalSignal(ctx, symbol, side)
		}},
		{"funding_bias", func(ctx context.Context) (bool, error) {
			if p.Funding == nil {
				return false, nil
			}
			rate, err := p.Funding.FundingRate(ctx, symbol)
			if err != nil {
				return false, err
			}
			return a.fundingBias(rate, side), nil
		}},
		{"correlation_breakdown", func(ctx context.Context) (bool, error) {
			if p.Correlation == nil {
				return false, nil
			}
			return p.Correlation.CorrelationBreakdown(ctx, symbol)
		}},
		{"liquidity_sweep", func(ctx context.Context) (bool, error) {
			if p.Liquidity == nil {
				return false, nil
			}
			return p.Liquidity.SweepPotential(ctx, symbol, side)
		}},
		{"candlestick_pattern", func(ctx context.Context) (bool, error) {
			if p.Candlestick == nil {
				return false, nil
			}
			return p.Candlestick.ReversalPattern(ctx, symbol, side)
		}},
		{"volume_profile", func(ctx context.Context) (bool, error) {
			if p.VolumeProfile == nil {
				return false, nil
			}
			return p.VolumeProfile.NearValueLevel(ctx, symbol, price, side)
		}},
		{"pivot_level", func(ctx context.Context) (bool, error) {
			if p.Pivot == nil {
				return false, nil
			}
			return p.Pivot.NearPivot(ctx, symbol, price)
		}},
	}
}

// fundingBias reports whether the funding rate shows the crowd paying
// to hold positions against us, which historically precedes a squeeze
// back in our favor.
func (a *Aggregator) fundingBias(rate float64, side types.Side) bool {
	threshold := a.config.FundingBiasThreshold
	if side == types.SideLong {
		return rate <= -threshold
	}
	return rate >= threshold
}

type panicError struct {
	check string
	value interface{}
}

func (e *panicError) Error() string {
	return "reversal check " + e.check + " panicked"
}
