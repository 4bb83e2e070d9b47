package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krivonosoff161/futures-exit-bot/internal/exchange/bybit"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

type fakeSource struct {
	positions []bybit.PositionInfo
	err       error
}

func (f *fakeSource) FetchPositions(context.Context, string) ([]bybit.PositionInfo, error) {
	return f.positions, f.err
}

func openInfo(symbol string, pnl float64) bybit.PositionInfo {
	return bybit.PositionInfo{
		Symbol:        symbol,
		Side:          types.SideLong,
		Size:          0.5,
		EntryPrice:    30000,
		Leverage:      5,
		UnrealisedPnl: pnl,
		PositionIM:    100,
		CreatedTime:   time.Now().Add(-time.Minute),
	}
}

func TestSyncedRegistry_MirrorsVenue(t *testing.T) {
	source := &fakeSource{positions: []bybit.PositionInfo{openInfo("BTCUSDT", 2.5)}}
	registry := NewSyncedRegistry(source, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))

	pos, ok := registry.GetPosition("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, types.SideLong, pos.Side)
	assert.InDelta(t, 30000.0, pos.EntryPrice, 1e-9)
	assert.NoError(t, pos.Validate())

	meta, ok := registry.GetMetadata("BTCUSDT")
	require.True(t, ok)
	assert.True(t, meta.HasMarginData)
	assert.InDelta(t, 100.0, meta.MarginUsed, 1e-9)
}

func TestSyncedRegistry_PartialFlagSurvivesRefresh(t *testing.T) {
	source := &fakeSource{positions: []bybit.PositionInfo{openInfo("BTCUSDT", 1.0)}}
	registry := NewSyncedRegistry(source, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))

	registry.MarkPartialTaken("BTCUSDT")
	require.NoError(t, registry.Sync(context.Background()))

	meta, ok := registry.GetMetadata("BTCUSDT")
	require.True(t, ok)
	assert.True(t, meta.PartialTaken)
}

func TestSyncedRegistry_PeakProfitOnlyRises(t *testing.T) {
	source := &fakeSource{positions: []bybit.PositionInfo{openInfo("BTCUSDT", 3.0)}}
	registry := NewSyncedRegistry(source, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))

	source.positions[0].UnrealisedPnl = 1.0
	require.NoError(t, registry.Sync(context.Background()))

	meta, _ := registry.GetMetadata("BTCUSDT")
	assert.InDelta(t, 3.0, meta.PeakProfitPct, 1e-9, "peak held after drawdown")
}

func TestSyncedRegistry_ClosedPositionDropped(t *testing.T) {
	source := &fakeSource{positions: []bybit.PositionInfo{openInfo("BTCUSDT", 1.0), openInfo("ETHUSDT", 0.5)}}
	registry := NewSyncedRegistry(source, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))
	assert.Len(t, registry.Symbols(), 2)

	source.positions = source.positions[:1]
	require.NoError(t, registry.Sync(context.Background()))

	_, ok := registry.GetPosition("ETHUSDT")
	assert.False(t, ok)
	assert.Equal(t, []string{"BTCUSDT"}, registry.Symbols())
}

func TestSyncedRegistry_TrailingStop(t *testing.T) {
	info := openInfo("BTCUSDT", 1.0)
	info.TrailingStop = 29500
	registry := NewSyncedRegistry(&fakeSource{positions: []bybit.PositionInfo{info}}, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))

	stop, active := registry.TrailingStop("BTCUSDT")
	assert.True(t, active)
	assert.InDelta(t, 29500.0, stop, 1e-9)

	_, active = registry.TrailingStop("ETHUSDT")
	assert.False(t, active)
}

func TestCandleCache(t *testing.T) {
	cache := NewCandleCache()

	_, ok := cache.LastCandle("BTCUSDT")
	assert.False(t, ok)

	candles := []types.OHLCV{
		{Close: 100, Timestamp: time.Now().Add(-2 * time.Minute)},
		{Close: 101, Timestamp: time.Now().Add(-time.Minute)},
	}
	cache.Update("BTCUSDT", candles)

	last, ok := cache.LastCandle("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 101.0, last.Close, 1e-9)

	series := cache.Series("BTCUSDT")
	require.Len(t, series, 2)
	series[0].Close = 999 // Caller mutation must not leak back
	again := cache.Series("BTCUSDT")
	assert.InDelta(t, 100.0, again[0].Close, 1e-9)
}
