package regime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// smallConfig keeps the candle requirement low so fixtures stay readable
func smallConfig() DetectorConfig {
	return DetectorConfig{
		FastEMAPeriod:        5,
		SlowEMAPeriod:        15,
		ADXPeriod:            5,
		ADXTrendThreshold:    20.0,
		EMADistanceThreshold: 0.005,
		ATRPeriod:            5,
		ChoppinessPeriod:     5,
		ChoppinessThreshold:  61.8,
		ConfirmationBars:     2,
	}
}

func makeCandles(n int, price func(i int) float64) []types.OHLCV {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, n)
	for i := 0; i < n; i++ {
		p := price(i)
		out[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      p * 0.999,
			High:      p * 1.002,
			Low:       p * 0.998,
			Close:     p,
			Volume:    100,
		}
	}
	return out
}

func trendingCandles(n int) []types.OHLCV {
	return makeCandles(n, func(i int) float64 {
		return 100 * math.Pow(1.01, float64(i)) // Steady 1% climb per bar
	})
}

func rangingCandles(n int) []types.OHLCV {
	return makeCandles(n, func(i int) float64 {
		return 100 + 0.3*math.Sin(float64(i)/3)
	})
}

func TestDetect_InsufficientData(t *testing.T) {
	d := NewDetector(smallConfig())
	_, err := d.Detect(trendingCandles(d.MinRequiredPeriods() - 1))
	assert.Error(t, err)
}

func TestDetect_TrendingMarket(t *testing.T) {
	d := NewDetector(smallConfig())
	sig, err := d.Detect(trendingCandles(60))
	require.NoError(t, err)

	assert.Equal(t, RegimeTrending, sig.Type)
	assert.Equal(t, 1, sig.TrendDirection)
	assert.Greater(t, sig.TrendStrength, 0.5)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.False(t, sig.Timestamp.IsZero())
}

func TestDetect_DowntrendDirection(t *testing.T) {
	d := NewDetector(smallConfig())
	candles := makeCandles(60, func(i int) float64 {
		return 100 * math.Pow(0.99, float64(i))
	})
	sig, err := d.Detect(candles)
	require.NoError(t, err)

	assert.Equal(t, RegimeTrending, sig.Type)
	assert.Equal(t, -1, sig.TrendDirection)
}

func TestDetect_FlatMarketIsNotTrending(t *testing.T) {
	d := NewDetector(smallConfig())
	sig, err := d.Detect(rangingCandles(60))
	require.NoError(t, err)

	assert.NotEqual(t, RegimeTrending, sig.Type)
	assert.Less(t, sig.TrendStrength, 0.7)
}

func TestDetect_HysteresisHoldsUntilConfirmed(t *testing.T) {
	d := NewDetector(smallConfig())

	sig, err := d.Detect(trendingCandles(60))
	require.NoError(t, err)
	require.Equal(t, RegimeTrending, sig.Type)

	// One contradicting read is not enough to flip the regime
	sig, err = d.Detect(rangingCandles(60))
	require.NoError(t, err)
	assert.Equal(t, RegimeTrending, sig.Type, "first contradiction held back")

	// Repeated confirmation flips it
	sig, err = d.Detect(rangingCandles(60))
	require.NoError(t, err)
	assert.NotEqual(t, RegimeTrending, sig.Type)

	current, ok := d.Current()
	assert.True(t, ok)
	assert.Equal(t, sig.Type, current)
}

func TestDetect_VolatilityIsFractionOfPrice(t *testing.T) {
	d := NewDetector(smallConfig())
	sig, err := d.Detect(rangingCandles(60))
	require.NoError(t, err)
	assert.Greater(t, sig.Volatility, 0.0)
	assert.Less(t, sig.Volatility, 0.05)
}

func TestRegimeType_RoundTrip(t *testing.T) {
	for _, reg := range []RegimeType{RegimeTrending, RegimeRanging, RegimeChoppy} {
		parsed, err := Parse(reg.String())
		require.NoError(t, err)
		assert.Equal(t, reg, parsed)
		assert.True(t, reg.Valid())
	}

	_, err := Parse("SIDEWAYS")
	assert.Error(t, err)
}

func TestRegimeType_TextMarshalling(t *testing.T) {
	data, err := RegimeChoppy.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CHOPPY", string(data))

	var reg RegimeType
	require.NoError(t, reg.UnmarshalText([]byte("RANGING")))
	assert.Equal(t, RegimeRanging, reg)
}
