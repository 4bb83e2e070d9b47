package safety

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type reconnectRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *reconnectRecorder) record(symbol string, _ int, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, symbol)
}

func (r *reconnectRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestReconnectGovernor_SymbolCooldown(t *testing.T) {
	rec := &reconnectRecorder{}
	cfg := ReconnectConfig{SymbolCooldown: 30 * time.Second, GlobalCooldown: time.Millisecond}
	g := NewReconnectGovernor(cfg, rec.record, zerolog.Nop())

	current := time.Now()
	g.now = func() time.Time { return current }

	assert.True(t, g.Request("BTCUSDT", 11, "excessive fallbacks"))
	assert.False(t, g.Request("BTCUSDT", 12, "excessive fallbacks"), "within cooldown")

	current = current.Add(31 * time.Second)
	assert.True(t, g.Request("BTCUSDT", 13, "excessive fallbacks"))
}

func TestReconnectGovernor_GlobalCooldownAcrossSymbols(t *testing.T) {
	rec := &reconnectRecorder{}
	cfg := ReconnectConfig{SymbolCooldown: time.Millisecond, GlobalCooldown: time.Hour}
	g := NewReconnectGovernor(cfg, rec.record, zerolog.Nop())

	assert.True(t, g.Request("BTCUSDT", 11, "excessive fallbacks"))
	assert.False(t, g.Request("ETHUSDT", 11, "excessive fallbacks"), "global limiter exhausted")
}

func TestReconnectGovernor_NilCallback(t *testing.T) {
	g := NewReconnectGovernor(DefaultReconnectConfig(), nil, zerolog.Nop())
	assert.False(t, g.Request("BTCUSDT", 11, "excessive fallbacks"))
}

func TestReconnectGovernor_DispatchesAsync(t *testing.T) {
	rec := &reconnectRecorder{}
	cfg := ReconnectConfig{SymbolCooldown: time.Millisecond, GlobalCooldown: time.Millisecond}
	g := NewReconnectGovernor(cfg, rec.record, zerolog.Nop())

	g.Request("BTCUSDT", 11, "excessive fallbacks")

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}
