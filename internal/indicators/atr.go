package indicators

import (
	"errors"
	"math"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// ATR represents the Average True Range technical indicator.
// ATR measures market volatility by decomposing the entire range of an
// asset price for the period. Wilder's smoothing (EMA) is used.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate calculates the ATR value over the tail of the candle series
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period+1 {
		return 0, errors.New("insufficient data points for ATR calculation")
	}

	// Seed with a simple average of the first period's true ranges,
	// then apply Wilder's smoothing over the remainder.
	atr := 0.0
	for i := 1; i <= a.period; i++ {
		atr += trueRange(data[i], data[i-1].Close)
	}
	atr /= float64(a.period)

	for i := a.period + 1; i < len(data); i++ {
		tr := trueRange(data[i], data[i-1].Close)
		atr = (atr*float64(a.period-1) + tr) / float64(a.period)
	}

	return atr, nil
}

// trueRange computes the true range of a candle given the previous close
func trueRange(candle types.OHLCV, prevClose float64) float64 {
	tr := candle.High - candle.Low
	if hc := math.Abs(candle.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(candle.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}
