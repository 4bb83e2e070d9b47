package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/safety"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

type fakeFetcher struct {
	mu         sync.Mutex
	price      float64
	priceErr   error
	book       *types.OrderBook
	bookErr    error
	fetchCalls int
}

func (f *fakeFetcher) FetchPrice(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	return f.price, f.priceErr
}

func (f *fakeFetcher) FetchOrderBook(_ context.Context, _ string) (*types.OrderBook, error) {
	return f.book, f.bookErr
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

type fakeCandles struct {
	candle types.OHLCV
	ok     bool
}

func (f *fakeCandles) LastCandle(_ string) (types.OHLCV, bool) {
	return f.candle, f.ok
}

func newTestResolver(fetcher Fetcher, candles CandleSource) (*Resolver, func(time.Duration)) {
	r := NewResolver(DefaultConfig(), fetcher, candles, nil, zerolog.Nop())
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }
	return r, func(d time.Duration) { current = current.Add(d) }
}

func TestResolve_LivePriceWithinBudget(t *testing.T) {
	r, advance := newTestResolver(&fakeFetcher{priceErr: errors.New("down")}, nil)

	r.UpdateLive("BTCUSDT", 30000, r.now())
	advance(time.Second)

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, snap.Source)
	assert.Equal(t, 30000.0, snap.Price)
	assert.Equal(t, time.Second, snap.Age)
	assert.False(t, snap.Stale)
}

func TestResolve_ExitBudgetTighterThanSignal(t *testing.T) {
	fetcher := &fakeFetcher{priceErr: errors.New("down"), bookErr: errors.New("down")}
	r, advance := newTestResolver(fetcher, nil)

	r.UpdateLive("BTCUSDT", 30000, r.now())
	advance(3 * time.Second) // Older than exit budget (2s), within signal budget (5s)

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextSignal)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, snap.Source)

	_, err = r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	assert.Error(t, err, "exit context must fail rather than use stale data")
	assert.True(t, boterrors.IsMissingData(err))
}

func TestResolve_NetworkFetchFallback(t *testing.T) {
	fetcher := &fakeFetcher{price: 29950}
	r, _ := newTestResolver(fetcher, nil)

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, SourceCachedFallback, snap.Source)
	assert.Equal(t, 29950.0, snap.Price)
	assert.Equal(t, 1, fetcher.calls())
}

func TestResolve_FetchCacheUsedWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{price: 29950}
	r, advance := newTestResolver(fetcher, nil)

	_, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)

	advance(500 * time.Millisecond)
	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, SourceCachedFallback, snap.Source)
	assert.Equal(t, 1, fetcher.calls(), "second resolve served from cache")

	advance(600 * time.Millisecond) // Cache now older than 1s
	_, err = r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls())
}

func TestResolve_CachedFetchBeyondBudgetRejectedForExit(t *testing.T) {
	fetcher := &fakeFetcher{price: 29950}
	config := DefaultConfig()
	config.CacheTTL = 10 * time.Second // Outlives the 2s exit budget
	r := NewResolver(config, fetcher, nil, nil, zerolog.Nop())
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	_, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)

	current = current.Add(3 * time.Second) // Within TTL, beyond exit budget
	fetcher.priceErr = errors.New("down")
	fetcher.bookErr = errors.New("down")

	// Signal context (5s budget) may still serve the cached price
	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextSignal)
	require.NoError(t, err)
	assert.Equal(t, SourceCachedFallback, snap.Source)
	assert.False(t, snap.Stale)

	// Exit context must fail instead of serving a price older than its
	// budget just because the cache entry is still inside its TTL
	_, err = r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.Error(t, err)
	assert.True(t, boterrors.IsMissingData(err))
}

func TestResolve_OrderBookMidFallback(t *testing.T) {
	fetcher := &fakeFetcher{
		priceErr: errors.New("ticker down"),
		book: &types.OrderBook{
			Symbol: "BTCUSDT",
			Bids:   []types.PriceLevel{{Price: 29990, Size: 1}},
			Asks:   []types.PriceLevel{{Price: 30010, Size: 1}},
		},
	}
	r, _ := newTestResolver(fetcher, nil)

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, SourceOrderBookMid, snap.Source)
	assert.Equal(t, 30000.0, snap.Price)
}

func TestResolve_LastCandleForSignalOnly(t *testing.T) {
	fetcher := &fakeFetcher{priceErr: errors.New("down"), bookErr: errors.New("down")}
	r, _ := newTestResolver(fetcher, nil)
	candles := &fakeCandles{
		candle: types.OHLCV{Close: 29900, Timestamp: r.now().Add(-30 * time.Second)},
		ok:     true,
	}
	r.candles = candles

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextSignal)
	require.NoError(t, err)
	assert.Equal(t, SourceLastCandle, snap.Source)
	assert.Equal(t, 29900.0, snap.Price)

	_, err = r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	assert.Error(t, err, "candle close is never fresh enough for exit evaluation")
}

func TestResolve_StaleCandleRejected(t *testing.T) {
	fetcher := &fakeFetcher{priceErr: errors.New("down"), bookErr: errors.New("down")}
	r, _ := newTestResolver(fetcher, nil)
	r.candles = &fakeCandles{
		candle: types.OHLCV{Close: 29900, Timestamp: r.now().Add(-61 * time.Second)},
		ok:     true,
	}

	_, err := r.Resolve(context.Background(), "BTCUSDT", ContextSignal)
	assert.Error(t, err)
}

func TestResolve_FallbackCounterAndReset(t *testing.T) {
	fetcher := &fakeFetcher{price: 29950}
	r, _ := newTestResolver(fetcher, nil)

	_, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Equal(t, 1, r.FallbackCount("BTCUSDT"))

	// A fresh live price clears the counter
	r.UpdateLive("BTCUSDT", 30000, r.now())
	_, err = r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	require.NoError(t, err)
	assert.Zero(t, r.FallbackCount("BTCUSDT"))
}

func TestResolve_ReconnectRequestedAfterThreshold(t *testing.T) {
	fetcher := &fakeFetcher{price: 29950}

	var mu sync.Mutex
	requests := 0
	governor := safety.NewReconnectGovernor(
		safety.ReconnectConfig{SymbolCooldown: time.Millisecond, GlobalCooldown: time.Millisecond},
		func(_ string, _ int, _ string) {
			mu.Lock()
			requests++
			mu.Unlock()
		},
		zerolog.Nop(),
	)

	cfg := DefaultConfig()
	cfg.FallbackThreshold = 3
	cfg.CacheTTL = 0 // Force a network fetch every resolve
	r := NewResolver(cfg, fetcher, nil, governor, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return requests == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.FallbackCount("BTCUSDT"), "counter reset after dispatched request")
}

func TestResolve_AllSourcesDown(t *testing.T) {
	fetcher := &fakeFetcher{priceErr: errors.New("down"), bookErr: errors.New("down")}
	r, _ := newTestResolver(fetcher, &fakeCandles{})

	snap, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	assert.Nil(t, snap)
	assert.True(t, boterrors.IsMissingData(err))
}

func TestUpdateLive_IgnoresNonPositive(t *testing.T) {
	r, _ := newTestResolver(&fakeFetcher{priceErr: errors.New("down"), bookErr: errors.New("down")}, nil)
	r.UpdateLive("BTCUSDT", 0, r.now())

	_, err := r.Resolve(context.Background(), "BTCUSDT", ContextExit)
	assert.Error(t, err)
}
