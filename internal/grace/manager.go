package grace

import (
	"sync"
	"time"
)

// DefaultWindow is how long a stop-loss stays deferred after the first
// attempt that lacked a required confirmation signal.
const DefaultWindow = 30 * time.Second

type entry struct {
	firstAttempt time.Time
	reason       string
}

// Manager tracks, per symbol, whether a stop-loss decision should be
// deferred because a required confirmation signal was unavailable. The
// window is bounded: one missing data source can neither permanently
// block nor permanently bypass stop-loss protection.
type Manager struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewManager creates a grace-period manager with the given window
func NewManager(window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		window:  window,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NoteAttempt records a stop-loss attempt that found a required
// confirmation signal unavailable. Only the first attempt per window is
// recorded; an existing entry, even an expired one, is never re-armed
// here. Expiry is observed and cleared by IsActive, so a caller doing
// NoteAttempt-then-IsActive sees the window elapse instead of a window
// that reopens on every attempt.
func (m *Manager) NoteAttempt(symbol, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[symbol]; ok {
		return
	}
	m.entries[symbol] = entry{firstAttempt: m.now(), reason: reason}
}

// IsActive reports whether the grace window for symbol is still open.
// Expired entries are cleared, so repeated checks are idempotent.
func (m *Manager) IsActive(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[symbol]
	if !ok {
		return false
	}
	if m.now().Sub(e.firstAttempt) >= m.window {
		delete(m.entries, symbol)
		return false
	}
	return true
}

// Reason returns the recorded reason for an active grace window
func (m *Manager) Reason(symbol string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[symbol]
	if !ok || m.now().Sub(e.firstAttempt) >= m.window {
		return "", false
	}
	return e.reason, true
}

// Clear removes any grace entry for symbol, e.g. after the position closes
func (m *Manager) Clear(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, symbol)
}
