package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// staleEvaluationAfter marks the bot degraded when no symbol has been
// evaluated for this long while positions may still be open.
const staleEvaluationAfter = 2 * time.Minute

// maxRecentErrors bounds the error window reported by the endpoint
const maxRecentErrors = 16

type HealthChecker struct {
	mu             sync.RWMutex
	lastEvaluation time.Time
	lastPrice      float64
	wsConnected    bool
	errors         []string
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastEvaluation time.Time `json:"last_evaluation"`
	LastPrice      float64   `json:"last_price"`
	WSConnected    bool      `json:"ws_connected"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// NoteEvaluation records a completed evaluation pass
func (h *HealthChecker) NoteEvaluation() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvaluation = time.Now()
}

// NotePrice records the most recent trusted price
func (h *HealthChecker) NotePrice(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrice = price
}

// SetConnected records websocket connectivity
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsConnected = connected
}

// NoteError appends to the recent error window
func (h *HealthChecker) NoteError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > maxRecentErrors {
		h.errors = h.errors[len(h.errors)-maxRecentErrors:]
	}
}

// ClearErrors resets the recent error window
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.wsConnected || time.Since(h.lastEvaluation) > staleEvaluationAfter {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastEvaluation: h.lastEvaluation,
		LastPrice:      h.lastPrice,
		WSConnected:    h.wsConnected,
		Uptime:         time.Since(startTime).String(),
		Errors:         h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
