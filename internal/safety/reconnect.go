package safety

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ReconnectFunc is invoked fire-and-forget when a data feed should be
// reconnected for a symbol.
type ReconnectFunc func(symbol string, fallbackCount int, reason string)

// ReconnectConfig holds rate limits for reconnection requests
type ReconnectConfig struct {
	SymbolCooldown time.Duration `json:"symbol_cooldown"` // Per-symbol, ~30s
	GlobalCooldown time.Duration `json:"global_cooldown"` // Across all symbols
}

// DefaultReconnectConfig returns reconnect governor defaults
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		SymbolCooldown: 30 * time.Second,
		GlobalCooldown: 30 * time.Second,
	}
}

// ReconnectGovernor rate-limits reconnection requests so excessive
// fallback usage cannot trigger reconnect storms. Requests are
// dispatched asynchronously; the caller never blocks.
type ReconnectGovernor struct {
	mu           sync.Mutex
	config       ReconnectConfig
	global       *rate.Limiter
	lastBySymbol map[string]time.Time
	callback     ReconnectFunc
	log          zerolog.Logger
	now          func() time.Time
}

// NewReconnectGovernor creates a governor around the given callback
func NewReconnectGovernor(config ReconnectConfig, callback ReconnectFunc, log zerolog.Logger) *ReconnectGovernor {
	return &ReconnectGovernor{
		config:       config,
		global:       rate.NewLimiter(rate.Every(config.GlobalCooldown), 1),
		lastBySymbol: make(map[string]time.Time),
		callback:     callback,
		log:          log,
		now:          time.Now,
	}
}

// Request asks for a reconnect on behalf of symbol. Returns true when
// the request passed both cooldowns and was dispatched.
func (g *ReconnectGovernor) Request(symbol string, fallbackCount int, reason string) bool {
	if g.callback == nil {
		return false
	}

	g.mu.Lock()
	if last, ok := g.lastBySymbol[symbol]; ok && g.now().Sub(last) < g.config.SymbolCooldown {
		g.mu.Unlock()
		return false
	}
	if !g.global.Allow() {
		g.mu.Unlock()
		return false
	}
	g.lastBySymbol[symbol] = g.now()
	g.mu.Unlock()

	g.log.Warn().Str("symbol", symbol).Int("fallback_count", fallbackCount).
		Str("reason", reason).Msg("requesting data feed reconnect")

	go g.callback(symbol, fallbackCount, reason)
	return true
}
