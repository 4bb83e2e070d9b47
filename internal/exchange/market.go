package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/indicators"
	"github.com/krivonosoff161/futures-exit-bot/internal/pricing"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/krivonosoff161/futures-exit-bot/internal/thresholds"
)

// MarketHub is the engine's single window onto market state. It serves
// resolved prices, regime classification and indicator values from the
// price resolver and the candle cache, keeping one hysteresis-carrying
// detector per symbol.
type MarketHub struct {
	prices  *pricing.Resolver
	candles *CandleCache
	config  regime.DetectorConfig
	log     zerolog.Logger

	mu        sync.Mutex
	detectors map[string]*regime.Detector
	latest    map[string]*regime.Signal
}

// NewMarketHub creates a market hub over the given price resolver and
// candle cache
func NewMarketHub(prices *pricing.Resolver, candles *CandleCache, config regime.DetectorConfig, log zerolog.Logger) *MarketHub {
	return &MarketHub{
		prices:    prices,
		candles:   candles,
		config:    config,
		log:       log,
		detectors: make(map[string]*regime.Detector),
		latest:    make(map[string]*regime.Signal),
	}
}

// GetPrice resolves the current price for symbol under the freshness
// budget of the given call context
func (h *MarketHub) GetPrice(ctx context.Context, symbol string, callCtx pricing.CallContext) (*pricing.Snapshot, error) {
	return h.prices.Resolve(ctx, symbol, callCtx)
}

// GetRegime classifies the current market regime for symbol from the
// cached candle series. When the series is too short for a fresh
// classification, the detector's last confirmed regime is reused.
func (h *MarketHub) GetRegime(ctx context.Context, symbol string) (regime.RegimeType, error) {
	signal, err := h.detect(symbol)
	if err != nil {
		h.mu.Lock()
		detector, ok := h.detectors[symbol]
		h.mu.Unlock()
		if ok {
			if current, confirmed := detector.Current(); confirmed {
				h.log.Debug().Str("symbol", symbol).Err(err).
					Msg("regime detection degraded, reusing last confirmed regime")
				return current, nil
			}
		}
		return regime.RegimeRanging, boterrors.Wrap(err, boterrors.ErrorCategoryMissingData, "market", "regime").
			WithContext("symbol", symbol)
	}
	return signal.Type, nil
}

// GetIndicator computes the named indicator over the cached candle
// series. ATR is returned in absolute price units.
func (h *MarketHub) GetIndicator(ctx context.Context, symbol, name string) (float64, error) {
	series := h.candles.Series(symbol)
	if len(series) == 0 {
		return 0, boterrors.NewMissingData("market", "indicator", "no candles cached").
			WithContext("symbol", symbol)
	}
	switch name {
	case thresholds.IndicatorATR:
		return indicators.NewATR(h.config.ATRPeriod).Calculate(series)
	default:
		return 0, fmt.Errorf("unknown indicator %q", name)
	}
}

// TrendStrength reports the strength and direction of the latest regime
// signal for symbol
func (h *MarketHub) TrendStrength(ctx context.Context, symbol string) (float64, int, error) {
	h.mu.Lock()
	signal := h.latest[symbol]
	h.mu.Unlock()
	if signal == nil {
		var err error
		signal, err = h.detect(symbol)
		if err != nil {
			return 0, 0, err
		}
	}
	return signal.TrendStrength, signal.TrendDirection, nil
}

func (h *MarketHub) detect(symbol string) (*regime.Signal, error) {
	series := h.candles.Series(symbol)

	h.mu.Lock()
	detector, ok := h.detectors[symbol]
	if !ok {
		detector = regime.NewDetector(h.config)
		h.detectors[symbol] = detector
	}
	h.mu.Unlock()

	signal, err := detector.Detect(series)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.latest[symbol] = signal
	h.mu.Unlock()
	return signal, nil
}
