package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signal metrics
	signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_signals_generated_total",
			Help: "Total number of signals emitted by the signal manager",
		},
		[]string{"symbol", "source", "direction"},
	)

	signalsFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_signals_filtered_total",
			Help: "Total number of strategy candidates dropped, by filter",
		},
		[]string{"source", "filter"},
	)

	strategyStrength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "noise_strategy_strength",
			Help: "Strength of the last candidate produced by a strategy",
		},
		[]string{"strategy"},
	)

	// Risk metrics
	riskDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_risk_decisions_total",
			Help: "Total number of order evaluations, by decision and block code",
		},
		[]string{"decision", "code"},
	)

	orderValue = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noise_admitted_order_value",
			Help:    "Distribution of admitted order notional values",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"asset_class"},
	)

	circuitBreaker = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "noise_circuit_breaker_triggered",
			Help: "1 when the loss circuit breaker is latched",
		},
	)

	// Trailing stop metrics
	stopUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_trailing_stop_updates_total",
			Help: "Total number of trailing stop records whose stop or state changed",
		},
		[]string{"symbol", "side"},
	)

	stopTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_trailing_stop_triggers_total",
			Help: "Total number of trailing stop triggers",
		},
		[]string{"symbol", "side"},
	)

	stopsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "noise_trailing_stops_tracked",
			Help: "Number of positions tracked by the trailing stop manager",
		},
	)

	// Exposure metrics
	exposureViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_exposure_violations_total",
			Help: "Total number of exposure violations reported",
		},
		[]string{"type", "severity"},
	)

	exposurePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "noise_exposure_percent",
			Help: "Portfolio exposure as a percentage of equity",
		},
		[]string{"measure"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(signalsGenerated)
	prometheus.MustRegister(signalsFiltered)
	prometheus.MustRegister(strategyStrength)
	prometheus.MustRegister(riskDecisions)
	prometheus.MustRegister(orderValue)
	prometheus.MustRegister(circuitBreaker)
	prometheus.MustRegister(stopUpdates)
	prometheus.MustRegister(stopTriggers)
	prometheus.MustRegister(stopsTracked)
	prometheus.MustRegister(exposureViolations)
	prometheus.MustRegister(exposurePercent)
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

// RecordSignal records an emitted signal
func RecordSignal(symbol, source, direction string) {
	signalsGenerated.WithLabelValues(symbol, source, direction).Inc()
}

// RecordFiltered records a candidate dropped by the named filter
func RecordFiltered(source, filter string) {
	signalsFiltered.WithLabelValues(source, filter).Inc()
}

// UpdateStrategyStrength updates the last candidate strength of a strategy
func UpdateStrategyStrength(strategy string, strength float64) {
	strategyStrength.WithLabelValues(strategy).Set(strength)
}

// RecordRiskDecision records an order evaluation outcome
func RecordRiskDecision(decision, code string) {
	if code == "" {
		code = "none"
	}
	riskDecisions.WithLabelValues(decision, code).Inc()
}

// RecordAdmittedOrder records the notional value of an admitted order
func RecordAdmittedOrder(assetClass string, value float64) {
	orderValue.WithLabelValues(assetClass).Observe(value)
}

// SetCircuitBreaker mirrors the breaker latch into a gauge
func SetCircuitBreaker(triggered bool) {
	if triggered {
		circuitBreaker.Set(1)
		return
	}
	circuitBreaker.Set(0)
}

// RecordStopUpdate records a trailing stop change
func RecordStopUpdate(symbol, side string) {
	stopUpdates.WithLabelValues(symbol, side).Inc()
}

// RecordStopTrigger records a trailing stop trigger
func RecordStopTrigger(symbol, side string) {
	stopTriggers.WithLabelValues(symbol, side).Inc()
}

// SetStopsTracked updates the tracked position gauge
func SetStopsTracked(n int) {
	stopsTracked.Set(float64(n))
}

// RecordExposureViolation records a reported exposure violation
func RecordExposureViolation(violationType, severity string) {
	exposureViolations.WithLabelValues(violationType, severity).Inc()
}

// UpdateExposure updates an exposure percentage gauge
func UpdateExposure(measure string, percent float64) {
	exposurePercent.WithLabelValues(measure).Set(percent)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
