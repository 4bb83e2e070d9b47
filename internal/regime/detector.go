package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/krivonosoff161/futures-exit-bot/internal/indicators"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// Signal represents the output of regime detection
type Signal struct {
	Type           RegimeType `json:"type"`
	Confidence     float64    `json:"confidence"`      // 0.0 to 1.0
	TrendStrength  float64    `json:"trend_strength"`  // 0.0 to 1.0
	TrendDirection int        `json:"trend_direction"` // 1=up, -1=down, 0=sideways
	Volatility     float64    `json:"volatility"`      // ATR as fraction of price
	Choppiness     float64    `json:"choppiness"`      // Choppiness Index 0-100
	Timestamp      time.Time  `json:"timestamp"`
}

// DetectorConfig holds configuration parameters for regime detection
type DetectorConfig struct {
	FastEMAPeriod        int     `json:"fast_ema_period"`        // 50
	SlowEMAPeriod        int     `json:"slow_ema_period"`        // 200
	ADXPeriod            int     `json:"adx_period"`             // 14
	ADXTrendThreshold    float64 `json:"adx_trend_threshold"`    // 20
	EMADistanceThreshold float64 `json:"ema_distance_threshold"` // 0.005
	ATRPeriod            int     `json:"atr_period"`             // 14
	ChoppinessPeriod     int     `json:"choppiness_period"`      // 14
	ChoppinessThreshold  float64 `json:"choppiness_threshold"`   // 61.8
	ConfirmationBars     int     `json:"confirmation_bars"`      // 3
}

// DefaultDetectorConfig returns the default regime detection configuration
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		FastEMAPeriod:        50,
		SlowEMAPeriod:        200,
		ADXPeriod:            14,
		ADXTrendThreshold:    20.0,
		EMADistanceThreshold: 0.005,
		ATRPeriod:            14,
		ChoppinessPeriod:     14,
		ChoppinessThreshold:  61.8,
		ConfirmationBars:     3,
	}
}

// Detector analyzes market data and classifies the current regime.
// Hysteresis (confirmation bars) prevents rapid regime flapping.
type Detector struct {
	config DetectorConfig

	fastEMA *indicators.EMA
	slowEMA *indicators.EMA
	adx     *indicators.ADX
	atr     *indicators.ATR
	chop    *indicators.Choppiness

	lastRegime          RegimeType
	candidate           RegimeType
	confirmationCounter int
	hasRegime           bool
}

// NewDetector creates a regime detector with the given configuration
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{
		config:  config,
		fastEMA: indicators.NewEMA(config.FastEMAPeriod),
		slowEMA: indicators.NewEMA(config.SlowEMAPeriod),
		adx:     indicators.NewADX(config.ADXPeriod),
		atr:     indicators.NewATR(config.ATRPeriod),
		chop:    indicators.NewChoppiness(config.ChoppinessPeriod),
	}
}

// MinRequiredPeriods returns the minimum candle count for detection
func (d *Detector) MinRequiredPeriods() int {
	min := d.config.SlowEMAPeriod
	if p := d.config.ADXPeriod * 3; p > min {
		min = p
	}
	return min + d.config.ConfirmationBars
}

// Detect classifies the regime from a candle series
func (d *Detector) Detect(data []types.OHLCV) (*Signal, error) {
	if len(data) < d.MinRequiredPeriods() {
		return nil, fmt.Errorf("insufficient data: need at least %d periods, have %d", d.MinRequiredPeriods(), len(data))
	}

	fast, err := d.fastEMA.Calculate(data)
	if err != nil {
		return nil, fmt.Errorf("fast EMA: %w", err)
	}
	slow, err := d.slowEMA.Calculate(data)
	if err != nil {
		return nil, fmt.Errorf("slow EMA: %w", err)
	}
	adxValue, err := d.adx.Calculate(data)
	if err != nil {
		return nil, fmt.Errorf("ADX: %w", err)
	}
	atrValue, err := d.atr.Calculate(data)
	if err != nil {
		return nil, fmt.Errorf("ATR: %w", err)
	}
	choppiness, err := d.chop.Calculate(data)
	if err != nil {
		return nil, fmt.Errorf("choppiness: %w", err)
	}

	lastClose := data[len(data)-1].Close
	emaDistance := math.Abs(fast-slow) / lastClose
	volatility := atrValue / lastClose

	classified := d.classify(adxValue, emaDistance, choppiness)
	trendStrength := d.trendStrength(adxValue, emaDistance)
	direction := 0
	if fast > slow {
		direction = 1
	} else if fast < slow {
		direction = -1
	}

	final := d.applyHysteresis(classified)

	return &Signal{
		Type:           final,
		Confidence:     d.confidence(classified, adxValue, choppiness),
		TrendStrength:  trendStrength,
		TrendDirection: direction,
		Volatility:     volatility,
		Choppiness:     choppiness,
		Timestamp:      data[len(data)-1].Timestamp,
	}, nil
}

// classify maps raw metrics to a regime
func (d *Detector) classify(adxValue, emaDistance, choppiness float64) RegimeType {
	if choppiness >= d.config.ChoppinessThreshold {
		return RegimeChoppy
	}
	if adxValue >= d.config.ADXTrendThreshold && emaDistance >= d.config.EMADistanceThreshold {
		return RegimeTrending
	}
	return RegimeRanging
}

// trendStrength combines ADX and EMA separation into a 0-1 score
func (d *Detector) trendStrength(adxValue, emaDistance float64) float64 {
	adxScore := math.Min(adxValue/40.0, 1.0)
	emaScore := math.Min(emaDistance/(d.config.EMADistanceThreshold*4), 1.0)
	return math.Min(adxScore*0.7+emaScore*0.3, 1.0)
}

// applyHysteresis requires confirmation bars before switching regimes
func (d *Detector) applyHysteresis(classified RegimeType) RegimeType {
	if !d.hasRegime {
		d.lastRegime = classified
		d.candidate = classified
		d.hasRegime = true
		return classified
	}

	if classified == d.lastRegime {
		d.candidate = classified
		d.confirmationCounter = 0
		return d.lastRegime
	}

	if classified == d.candidate {
		d.confirmationCounter++
	} else {
		d.candidate = classified
		d.confirmationCounter = 1
	}

	if d.confirmationCounter >= d.config.ConfirmationBars {
		d.lastRegime = classified
		d.confirmationCounter = 0
	}

	return d.lastRegime
}

func (d *Detector) confidence(classified RegimeType, adxValue, choppiness float64) float64 {
	var c float64
	switch classified {
	case RegimeTrending:
		c = math.Min(adxValue/40.0, 1.0)
	case RegimeChoppy:
		c = math.Min(choppiness/100.0*1.2, 1.0)
	case RegimeRanging:
		c = math.Min((d.config.ChoppinessThreshold-math.Abs(choppiness-50))/d.config.ChoppinessThreshold+0.4, 1.0)
	}
	if c < 0 {
		c = 0
	}
	return c
}

// Current returns the last confirmed regime, if any
func (d *Detector) Current() (RegimeType, bool) {
	return d.lastRegime, d.hasRegime
}
