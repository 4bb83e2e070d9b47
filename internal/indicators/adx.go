package indicators

import (
	"errors"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// ADX represents the Average Directional Index technical indicator.
// ADX measures trend strength regardless of direction (0-100 scale).
// Values > 20 indicate a trending market, > 40 a strong trend.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Calculate calculates the ADX value
func (a *ADX) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period*3 {
		return 0, errors.New("insufficient data for ADX calculation")
	}

	n := float64(a.period)

	// Wilder-smoothed TR, +DM and -DM
	var trSmooth, plusDMSmooth, minusDMSmooth float64
	var dxValues []float64

	for i := 1; i < len(data); i++ {
		current := data[i]
		previous := data[i-1]

		tr := trueRange(current, previous.Close)

		plusDM, minusDM := 0.0, 0.0
		highDiff := current.High - previous.High
		lowDiff := previous.Low - current.Low
		if highDiff > lowDiff && highDiff > 0 {
			plusDM = highDiff
		}
		if lowDiff > highDiff && lowDiff > 0 {
			minusDM = lowDiff
		}

		if i <= a.period {
			trSmooth += tr
			plusDMSmooth += plusDM
			minusDMSmooth += minusDM
			if i < a.period {
				continue
			}
		} else {
			trSmooth = trSmooth - trSmooth/n + tr
			plusDMSmooth = plusDMSmooth - plusDMSmooth/n + plusDM
			minusDMSmooth = minusDMSmooth - minusDMSmooth/n + minusDM
		}

		if trSmooth == 0 {
			dxValues = append(dxValues, 0)
			continue
		}

		plusDI := plusDMSmooth / trSmooth * 100
		minusDI := minusDMSmooth / trSmooth * 100

		diSum := plusDI + minusDI
		if diSum == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		dx := absFloat(plusDI-minusDI) / diSum * 100
		dxValues = append(dxValues, dx)
	}

	if len(dxValues) < a.period {
		return 0, errors.New("insufficient DX values for ADX smoothing")
	}

	// Seed ADX with the average of the first period's DX values,
	// then apply Wilder's smoothing.
	adx := 0.0
	for i := 0; i < a.period; i++ {
		adx += dxValues[i]
	}
	adx /= n

	for i := a.period; i < len(dxValues); i++ {
		adx = (adx*(n-1) + dxValues[i]) / n
	}

	return adx, nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
