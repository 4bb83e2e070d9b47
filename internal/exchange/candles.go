package exchange

import (
	"sync"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// CandleCache holds the most recent candle series per symbol. It backs
// both the price resolver's last-candle fallback and regime detection,
// which needs the full series.
type CandleCache struct {
	mu     sync.RWMutex
	series map[string][]types.OHLCV
}

// NewCandleCache creates an empty candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{series: make(map[string][]types.OHLCV)}
}

// Update replaces the stored series for symbol, oldest first
func (c *CandleCache) Update(symbol string, candles []types.OHLCV) {
	if len(candles) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]types.OHLCV, len(candles))
	copy(stored, candles)
	c.series[symbol] = stored
}

// LastCandle implements the price resolver's candle source
func (c *CandleCache) LastCandle(symbol string) (types.OHLCV, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	candles, ok := c.series[symbol]
	if !ok || len(candles) == 0 {
		return types.OHLCV{}, false
	}
	return candles[len(candles)-1], true
}

// Series returns a copy of the stored candles for symbol
func (c *CandleCache) Series(symbol string) []types.OHLCV {
	c.mu.RLock()
	defer c.mu.RUnlock()
	candles, ok := c.series[symbol]
	if !ok {
		return nil
	}
	out := make([]types.OHLCV, len(candles))
	copy(out, candles)
	return out
}
