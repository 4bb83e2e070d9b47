package thresholds

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krivonosoff161/futures-exit-bot/internal/params"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

type fakeIndicators struct {
	atr float64
	err error
}

func (f *fakeIndicators) GetIndicator(_ context.Context, _, name string) (float64, error) {
	if name != IndicatorATR {
		return 0, errors.New("unknown indicator")
	}
	return f.atr, f.err
}

func testBundle() *params.Bundle {
	bundle := params.DefaultBundles()[regime.RegimeRanging]
	copied := *bundle
	return &copied
}

func newResolver(ind IndicatorSource) *Resolver {
	return NewResolver(ind, DefaultConfig(), zerolog.Nop())
}

func TestResolve_ATRBased(t *testing.T) {
	r := newResolver(&fakeIndicators{atr: 150}) // 0.5% of price 30000
	bundle := testBundle()
	bundle.MinTPPct, bundle.MaxTPPct = 0.1, 10
	bundle.MinSLPct, bundle.MaxSLPct = 0.1, 10

	th, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 30000, bundle)
	require.NoError(t, err)

	assert.True(t, th.ATRBased)
	// atrPct=0.5, mult=1.5, levRatio=1, volFactor=1 -> 0.75
	assert.InDelta(t, 0.75, th.TakeProfitPct, 1e-9)
	// sl mult=1.2 -> 0.6
	assert.InDelta(t, 0.6, th.StopLossPct, 1e-9)
}

func TestResolve_BoundsApplied(t *testing.T) {
	r := newResolver(&fakeIndicators{atr: 3000}) // 10% of price, absurdly volatile
	bundle := testBundle()

	th, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 30000, bundle)
	require.NoError(t, err)

	assert.Equal(t, bundle.MaxTPPct, th.TakeProfitPct)
	assert.Equal(t, bundle.MaxSLPct, th.StopLossPct)
}

func TestResolve_ATRUnavailableFallsBackToBundle(t *testing.T) {
	r := newResolver(&fakeIndicators{err: errors.New("no data")})
	bundle := testBundle()

	th, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 30000, bundle)
	require.NoError(t, err)

	assert.False(t, th.ATRBased)
	assert.InDelta(t, bundle.TakeProfitPct, th.TakeProfitPct, 1e-9)
	assert.InDelta(t, bundle.StopLossPct, th.StopLossPct, 1e-9)
}

func TestResolve_LeverageRatioCapped(t *testing.T) {
	r := newResolver(&fakeIndicators{atr: 30}) // 0.1% of price
	bundle := testBundle()
	bundle.ReferenceLeverage = 5
	bundle.MinTPPct, bundle.MaxTPPct = 0.01, 100
	bundle.MinSLPct, bundle.MaxSLPct = 0.01, 100

	// 50x leverage is 10x reference, capped at 2.5x
	th, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 50, 30000, bundle)
	require.NoError(t, err)

	// atrPct=0.1 * mult 1.5 * capped ratio 2.5 = 0.375
	assert.InDelta(t, 0.375, th.TakeProfitPct, 1e-9)
}

func TestResolve_VolatilityFactorTightensTargets(t *testing.T) {
	r := newResolver(&fakeIndicators{atr: 30000 * 0.005})
	bundle := testBundle()
	bundle.MinTPPct, bundle.MaxTPPct = 0.01, 100
	bundle.MinSLPct, bundle.MaxSLPct = 0.01, 100

	major, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 30000, bundle)
	require.NoError(t, err)
	alt, err := r.Resolve(context.Background(), "DOGEUSDT", regime.RegimeRanging, 5, 30000, bundle)
	require.NoError(t, err)

	assert.Less(t, alt.TakeProfitPct, major.TakeProfitPct)
}

func TestResolve_InvalidInputs(t *testing.T) {
	r := newResolver(&fakeIndicators{atr: 100})

	_, err := r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 0, testBundle())
	assert.Error(t, err)

	_, err = r.Resolve(context.Background(), "BTCUSDT", regime.RegimeRanging, 5, 30000, nil)
	assert.Error(t, err)
}
