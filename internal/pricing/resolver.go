package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/safety"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// Fetcher performs network price requests against the exchange
type Fetcher interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	FetchOrderBook(ctx context.Context, symbol string) (*types.OrderBook, error)
}

// CandleSource supplies the last completed candle for a symbol
type CandleSource interface {
	LastCandle(symbol string) (types.OHLCV, bool)
}

// Config holds price-resolution budgets and limits
type Config struct {
	SignalBudget         time.Duration `json:"signal_budget"`          // Live-price budget for signal context
	ExitBudget           time.Duration `json:"exit_budget"`            // Live-price budget for exit context
	CacheTTL             time.Duration `json:"cache_ttl"`              // Network-fetch cache lifetime
	CandleMaxAge         time.Duration `json:"candle_max_age"`         // Last-candle acceptance window
	MaxConcurrentFetches int           `json:"max_concurrent_fetches"` // Bounded fetch gate
	FallbackThreshold    int           `json:"fallback_threshold"`     // Reconnect request trigger
}

// DefaultConfig returns price-resolution defaults
func DefaultConfig() Config {
	return Config{
		SignalBudget:         5 * time.Second,
		ExitBudget:           2 * time.Second,
		CacheTTL:             time.Second,
		CandleMaxAge:         60 * time.Second,
		MaxConcurrentFetches: 5,
		FallbackThreshold:    10,
	}
}

// Budget returns the live-price staleness budget for a call context
func (c Config) Budget(callCtx CallContext) time.Duration {
	if callCtx == ContextExit {
		return c.ExitBudget
	}
	return c.SignalBudget
}

type pricePoint struct {
	price      float64
	observedAt time.Time
}

// Resolver supplies a trustworthy current price for a symbol under
// partial data-feed failure, falling back through live stream → fetch
// cache → network request → order-book midpoint → last candle close.
// Exit-context callers get nil rather than stale data; nil means
// "cannot decide".
type Resolver struct {
	config   Config
	fetcher  Fetcher
	candles  CandleSource
	breaker  *gobreaker.CircuitBreaker
	governor *safety.ReconnectGovernor
	log      zerolog.Logger

	mu             sync.Mutex
	live           map[string]pricePoint
	fetchCache     map[string]pricePoint
	fallbackCounts map[string]int

	sem chan struct{}
	now func() time.Time
}

// NewResolver creates a price-freshness resolver
func NewResolver(config Config, fetcher Fetcher, candles CandleSource, governor *safety.ReconnectGovernor, log zerolog.Logger) *Resolver {
	if config.MaxConcurrentFetches <= 0 {
		config.MaxConcurrentFetches = DefaultConfig().MaxConcurrentFetches
	}
	return &Resolver{
		config:         config,
		fetcher:        fetcher,
		candles:        candles,
		breaker:        safety.NewFetchBreaker("price-fetch", log),
		governor:       governor,
		log:            log,
		live:           make(map[string]pricePoint),
		fetchCache:     make(map[string]pricePoint),
		fallbackCounts: make(map[string]int),
		sem:            make(chan struct{}, config.MaxConcurrentFetches),
		now:            time.Now,
	}
}

// UpdateLive records a live-streamed price observation for symbol.
// Called by the data-feed consumer on every tick.
func (r *Resolver) UpdateLive(symbol string, price float64, observedAt time.Time) {
	if price <= 0 {
		return
	}
	r.mu.Lock()
	r.live[symbol] = pricePoint{price: price, observedAt: observedAt}
	r.mu.Unlock()
}

// Resolve walks the fallback chain and returns the freshest acceptable
// price for the call context, or an error when no source qualifies.
func (r *Resolver) Resolve(ctx context.Context, symbol string, callCtx CallContext) (*Snapshot, error) {
	budget := r.config.Budget(callCtx)

	// 1. Live streamed price within the context budget
	if snap, ok := r.liveSnapshot(symbol, budget); ok {
		r.resetFallbacks(symbol)
		return snap, nil
	}

	// 2. Recently network-fetched price. The cache TTL may exceed the
	// caller's budget, so a hit that is stale for this context falls
	// through to a fresh fetch instead of being served silently.
	if snap, ok := r.cachedSnapshot(symbol, budget); ok && !snap.Stale {
		r.noteFallback(symbol, snap.Source)
		return snap, nil
	}

	// 3. Fresh network request through the bounded gate
	if snap, ok := r.fetchSnapshot(ctx, symbol); ok {
		r.noteFallback(symbol, snap.Source)
		return snap, nil
	}

	// 4. Order-book midpoint
	if snap, ok := r.orderBookSnapshot(ctx, symbol); ok {
		r.noteFallback(symbol, snap.Source)
		return snap, nil
	}

	// 5. Last completed candle close, signal context only: candle age
	// can never satisfy the exit budget and exit must fail instead of
	// silently using stale data.
	if snap, ok := r.candleSnapshot(symbol, budget); ok && !snap.Stale {
		r.noteFallback(symbol, snap.Source)
		return snap, nil
	}

	r.noteFallback(symbol, SourceUnknown)
	return nil, boterrors.NewMissingData("pricing", "resolve", "no acceptable price source").
		WithContext("symbol", symbol).WithContext("call_context", callCtx.String())
}

// FallbackCount returns the current fallback counter for symbol
func (r *Resolver) FallbackCount(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fallbackCounts[symbol]
}

func (r *Resolver) liveSnapshot(symbol string, budget time.Duration) (*Snapshot, bool) {
	r.mu.Lock()
	point, ok := r.live[symbol]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	age := r.now().Sub(point.observedAt)
	if age > budget {
		return nil, false
	}
	return &Snapshot{Price: point.price, Source: SourceLive, Age: age}, true
}

func (r *Resolver) cachedSnapshot(symbol string, budget time.Duration) (*Snapshot, bool) {
	r.mu.Lock()
	point, ok := r.fetchCache[symbol]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	age := r.now().Sub(point.observedAt)
	if age > r.config.CacheTTL {
		return nil, false
	}
	return &Snapshot{Price: point.price, Source: SourceCachedFallback, Age: age, Stale: age > budget}, true
}

func (r *Resolver) fetchSnapshot(ctx context.Context, symbol string) (*Snapshot, bool) {
	if r.fetcher == nil {
		return nil, false
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, false
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetcher.FetchPrice(ctx, symbol)
	})
	if err != nil {
		r.log.Debug().Str("symbol", symbol).Err(err).Msg("network price fetch failed")
		return nil, false
	}
	price, ok := result.(float64)
	if !ok || price <= 0 {
		return nil, false
	}

	r.mu.Lock()
	r.fetchCache[symbol] = pricePoint{price: price, observedAt: r.now()}
	r.mu.Unlock()

	return &Snapshot{Price: price, Source: SourceCachedFallback, Age: 0}, true
}

func (r *Resolver) orderBookSnapshot(ctx context.Context, symbol string) (*Snapshot, bool) {
	if r.fetcher == nil {
		return nil, false
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetcher.FetchOrderBook(ctx, symbol)
	})
	if err != nil {
		r.log.Debug().Str("symbol", symbol).Err(err).Msg("order book fetch failed")
		return nil, false
	}
	book, ok := result.(*types.OrderBook)
	if !ok {
		return nil, false
	}
	mid := book.MidPrice()
	if mid <= 0 {
		return nil, false
	}
	return &Snapshot{Price: mid, Source: SourceOrderBookMid, Age: 0}, true
}

func (r *Resolver) candleSnapshot(symbol string, budget time.Duration) (*Snapshot, bool) {
	if r.candles == nil {
		return nil, false
	}
	candle, ok := r.candles.LastCandle(symbol)
	if !ok || candle.Close <= 0 {
		return nil, false
	}
	age := r.now().Sub(candle.Timestamp)
	if age > r.config.CandleMaxAge {
		return nil, false
	}
	return &Snapshot{Price: candle.Close, Source: SourceLastCandle, Age: age, Stale: age > budget}, true
}

func (r *Resolver) resetFallbacks(symbol string) {
	r.mu.Lock()
	delete(r.fallbackCounts, symbol)
	r.mu.Unlock()
}

// noteFallback counts a non-live resolution and requests a reconnect
// when usage is excessive.
func (r *Resolver) noteFallback(symbol string, source Source) {
	r.mu.Lock()
	r.fallbackCounts[symbol]++
	count := r.fallbackCounts[symbol]
	r.mu.Unlock()

	if count >= r.config.FallbackThreshold && r.governor != nil {
		if r.governor.Request(symbol, count, "excessive price fallbacks via "+source.String()) {
			r.resetFallbacks(symbol)
		}
	}
}
