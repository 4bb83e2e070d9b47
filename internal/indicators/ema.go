package indicators

import (
	"errors"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// EMA represents the Exponential Moving Average technical indicator
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

// Calculate calculates the EMA of closing prices
func (e *EMA) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < e.period {
		return 0, errors.New("insufficient data points for EMA calculation")
	}

	// SMA seed over the first period
	sum := 0.0
	for i := 0; i < e.period; i++ {
		sum += data[i].Close
	}
	ema := sum / float64(e.period)

	multiplier := 2.0 / float64(e.period+1)
	for i := e.period; i < len(data); i++ {
		ema = (data[i].Close-ema)*multiplier + ema
	}

	return ema, nil
}
