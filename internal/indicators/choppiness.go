package indicators

import (
	"errors"
	"math"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// Choppiness represents the Choppiness Index indicator (0-100 scale).
// Values > 61.8 indicate a choppy, directionless market; values < 38.2
// indicate a strongly trending market.
type Choppiness struct {
	period int
}

// NewChoppiness creates a new Choppiness Index indicator
func NewChoppiness(period int) *Choppiness {
	return &Choppiness{period: period}
}

// Calculate calculates the Choppiness Index over the last period candles
func (c *Choppiness) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < c.period+1 {
		return 0, errors.New("insufficient data for choppiness calculation")
	}

	window := data[len(data)-c.period:]
	prevClose := data[len(data)-c.period-1].Close

	trSum := 0.0
	highest := window[0].High
	lowest := window[0].Low

	for i, candle := range window {
		if i == 0 {
			trSum += trueRange(candle, prevClose)
		} else {
			trSum += trueRange(candle, window[i-1].Close)
		}
		if candle.High > highest {
			highest = candle.High
		}
		if candle.Low < lowest {
			lowest = candle.Low
		}
	}

	rangeSpan := highest - lowest
	if rangeSpan <= 0 || trSum <= 0 {
		return 100, nil // Flat market is maximally choppy
	}

	return 100 * math.Log10(trSum/rangeSpan) / math.Log10(float64(c.period)), nil
}
