package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krivonosoff161/futures-exit-bot/internal/engine"
	"github.com/krivonosoff161/futures-exit-bot/internal/exchange"
	"github.com/krivonosoff161/futures-exit-bot/internal/exchange/bybit"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

type fakeOrders struct {
	positions []bybit.PositionInfo

	fetchCalls int
	closeCalls int
	lastSymbol string
	lastFrac   float64
}

func (f *fakeOrders) FetchPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error) {
	f.fetchCalls++
	return f.positions, nil
}

func (f *fakeOrders) ClosePosition(ctx context.Context, pos bybit.PositionInfo, fraction float64) error {
	f.closeCalls++
	f.lastSymbol = pos.Symbol
	f.lastFrac = fraction
	return nil
}

func testPositionInfo() bybit.PositionInfo {
	return bybit.PositionInfo{
		Symbol:      "BTCUSDT",
		Side:        types.SideLong,
		Size:        0.1,
		EntryPrice:  30000,
		MarkPrice:   30100,
		Leverage:    5,
		PositionIM:  100,
		CreatedTime: time.Now().Add(-time.Hour),
	}
}

func newTestBot(t *testing.T, orders *fakeOrders) *ExitBot {
	t.Helper()
	registry := exchange.NewSyncedRegistry(orders, zerolog.Nop())
	require.NoError(t, registry.Sync(context.Background()))
	return &ExitBot{
		log:      zerolog.Nop(),
		orders:   orders,
		registry: registry,
	}
}

func TestExecute_CloseUsesFullFraction(t *testing.T) {
	orders := &fakeOrders{positions: []bybit.PositionInfo{testPositionInfo()}}
	bot := newTestBot(t, orders)

	err := bot.execute(context.Background(), &engine.Decision{
		Symbol: "BTCUSDT",
		Action: engine.ActionClose,
		Reason: engine.ReasonSlReached,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, orders.closeCalls)
	assert.Equal(t, "BTCUSDT", orders.lastSymbol)
	assert.InDelta(t, 1.0, orders.lastFrac, 1e-9)
}

func TestExecute_PartialCloseUsesDecisionFraction(t *testing.T) {
	orders := &fakeOrders{positions: []bybit.PositionInfo{testPositionInfo()}}
	bot := newTestBot(t, orders)

	err := bot.execute(context.Background(), &engine.Decision{
		Symbol:   "BTCUSDT",
		Action:   engine.ActionPartialClose,
		Fraction: 0.3,
		Reason:   engine.ReasonPartialTpExecuted,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, orders.closeCalls)
	assert.InDelta(t, 0.3, orders.lastFrac, 1e-9)

	meta, ok := bot.registry.GetMetadata("BTCUSDT")
	require.True(t, ok)
	assert.True(t, meta.PartialTaken)
}

func TestExecute_ExtendTakeProfitNeverCloses(t *testing.T) {
	orders := &fakeOrders{positions: []bybit.PositionInfo{testPositionInfo()}}
	bot := newTestBot(t, orders)

	err := bot.execute(context.Background(), &engine.Decision{
		Symbol: "BTCUSDT",
		Action: engine.ActionExtendTakeProfit,
		Reason: engine.ReasonTpExtended,
	})
	require.NoError(t, err)
	assert.Zero(t, orders.fetchCalls, "extension must not touch the venue")
	assert.Zero(t, orders.closeCalls)
}

func TestExecute_HoldDoesNothing(t *testing.T) {
	orders := &fakeOrders{positions: []bybit.PositionInfo{testPositionInfo()}}
	bot := newTestBot(t, orders)

	err := bot.execute(context.Background(), &engine.Decision{
		Symbol: "BTCUSDT",
		Action: engine.ActionHold,
		Reason: engine.ReasonSlGraceActive,
	})
	require.NoError(t, err)
	assert.Zero(t, orders.fetchCalls)
	assert.Zero(t, orders.closeCalls)
}
