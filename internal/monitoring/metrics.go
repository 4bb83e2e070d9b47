package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_decisions_total",
			Help: "Total number of exit decisions by action and reason",
		},
		[]string{"symbol", "action", "reason", "regime"},
	)

	decisionPnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exit_bot_decision_net_pnl_pct",
			Help:    "Net PnL percent at decision time",
			Buckets: []float64{-20, -10, -5, -2, -1, -0.5, 0, 0.5, 1, 2, 5, 10},
		},
		[]string{"symbol", "action"},
	)

	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exit_bot_evaluation_duration_seconds",
			Help:    "Time spent evaluating one symbol",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exit_bot_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	priceFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_price_fallbacks_total",
			Help: "Price resolutions served by a non-live source",
		},
		[]string{"symbol", "source"},
	)

	reconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_reconnects_total",
			Help: "Websocket reconnects requested by the fallback governor",
		},
		[]string{"symbol"},
	)

	// Protection metrics
	graceActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_grace_activations_total",
			Help: "Stop-loss grace periods opened",
		},
		[]string{"symbol"},
	)

	emergencyClosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_emergency_closes_total",
			Help: "Closes issued by emergency loss protection",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exit_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(decisionPnL)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(priceFallbacksTotal)
	prometheus.MustRegister(reconnectsTotal)
	prometheus.MustRegister(graceActivationsTotal)
	prometheus.MustRegister(emergencyClosesTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordDecision records one exit decision
func RecordDecision(symbol, action, reason, regime string, netPnLPct float64, emergency bool) {
	decisionsTotal.WithLabelValues(symbol, action, reason, regime).Inc()
	decisionPnL.WithLabelValues(symbol, action).Observe(netPnLPct)
	if emergency {
		emergencyClosesTotal.WithLabelValues(symbol).Inc()
	}
}

// ObserveEvaluation records the duration of one evaluation
func ObserveEvaluation(symbol string, seconds float64) {
	evaluationDuration.WithLabelValues(symbol).Observe(seconds)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordPriceFallback records a price served by a fallback source
func RecordPriceFallback(symbol, source string) {
	priceFallbacksTotal.WithLabelValues(symbol, source).Inc()
}

// RecordReconnect records a governor-approved reconnect request
func RecordReconnect(symbol string) {
	reconnectsTotal.WithLabelValues(symbol).Inc()
}

// RecordGraceActivation records a stop-loss grace period opening
func RecordGraceActivation(symbol string) {
	graceActivationsTotal.WithLabelValues(symbol).Inc()
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
