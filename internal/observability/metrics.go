// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan cycle metrics
	CandidatesScanned prometheus.Counter
	SignalsScored     *prometheus.CounterVec
	SignalsDelivered  *prometheus.CounterVec
	CycleDuration     prometheus.Histogram

	// Confirmation metrics
	ConfirmationsDetected *prometheus.CounterVec

	// Exit monitor metrics
	TradesMonitored prometheus.Gauge
	TradesClosed    *prometheus.CounterVec
	AlertsEmitted   *prometheus.CounterVec
	EvalDuration    prometheus.Histogram

	// Market data metrics
	TicksReceived  prometheus.Counter
	TickFetchFails prometheus.Counter
	FeedReconnects prometheus.Counter

	// Delivery metrics
	NotifyErrors prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_signal_lab"
	}

	return &Metrics{
		// Scan cycle metrics
		CandidatesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_scanned_total",
			Help:      "Total number of candidate signals scanned",
		}),
		SignalsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_scored_total",
			Help:      "Total number of signals scored by strategy",
		}, []string{"strategy"}),
		SignalsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_delivered_total",
			Help:      "Total number of final signals delivered by strategy",
		}, []string{"strategy"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Confirmation metrics
		ConfirmationsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "confirmations_detected_total",
			Help:      "Total number of confirmations detected by level",
		}, []string{"level"}),

		// Exit monitor metrics
		TradesMonitored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exitmonitor",
			Name:      "trades_monitored",
			Help:      "Current number of trades under exit monitoring",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exitmonitor",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by exit reason",
		}, []string{"reason"}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exitmonitor",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alerts emitted by kind",
		}, []string{"kind"}),
		EvalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exitmonitor",
			Name:      "evaluation_duration_seconds",
			Help:      "Full evaluation pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Market data metrics
		TicksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "ticks_received_total",
			Help:      "Total number of quote ticks received",
		}),
		TickFetchFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "tick_fetch_failures_total",
			Help:      "Total number of failed latest-tick fetches",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "feed_reconnects_total",
			Help:      "Total number of quote stream reconnects",
		}),

		// Delivery metrics
		NotifyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivery_errors_total",
			Help:      "Total number of alert delivery errors",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful scan cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeClosed increments the closed-trades counter for a reason.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
}

// RecordAlert increments the emitted-alerts counter for a kind.
func RecordAlert(kind string) {
	DefaultMetrics.AlertsEmitted.WithLabelValues(kind).Inc()
}

// RecordTick increments the received-ticks counter.
func RecordTick() {
	DefaultMetrics.TicksReceived.Inc()
}

// RecordCycle records one completed scan cycle.
func RecordCycle(candidates int, seconds float64) {
	DefaultMetrics.CandidatesScanned.Add(float64(candidates))
	DefaultMetrics.CycleDuration.Observe(seconds)
	DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
}

// RecordSignalScored increments the scored-signals counter for a strategy.
func RecordSignalScored(strategy string) {
	DefaultMetrics.SignalsScored.WithLabelValues(strategy).Inc()
}

// RecordSignalDelivered increments the delivered-signals counter for a strategy.
func RecordSignalDelivered(strategy string) {
	DefaultMetrics.SignalsDelivered.WithLabelValues(strategy).Inc()
}

// RecordConfirmation increments the confirmations counter for a level.
func RecordConfirmation(level string) {
	DefaultMetrics.ConfirmationsDetected.WithLabelValues(level).Inc()
}

// SetTradesMonitored sets the monitored-trades gauge.
func SetTradesMonitored(n int) {
	DefaultMetrics.TradesMonitored.Set(float64(n))
}

// ObserveEval records the duration of one full evaluation pass.
func ObserveEval(seconds float64) {
	DefaultMetrics.EvalDuration.Observe(seconds)
}

// RecordTickFetchFailure increments the failed tick-fetch counter.
func RecordTickFetchFailure() {
	DefaultMetrics.TickFetchFails.Inc()
}

// RecordFeedReconnect increments the feed-reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordNotifyError increments the delivery-error counter.
func RecordNotifyError() {
	DefaultMetrics.NotifyErrors.Inc()
}

// ObserveDBQuery records a query's duration and, when err is non-nil,
// counts it as failed.
func ObserveDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
