package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ricewatch_"

	resultSuccess = "success"
	resultError   = "error"

	pollOutcomeApplied = "applied"
	pollOutcomeStale   = "stale"
	pollOutcomeError   = "error"
)

var (
	registerOnce sync.Once

	statusEvaluations *prometheus.CounterVec
	statusLatency     *prometheus.HistogramVec

	ruleSaves *prometheus.CounterVec

	pollResults     *prometheus.CounterVec
	pollSubscribers prometheus.Gauge

	ownershipViolations prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		statusEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_status_evaluations_total",
				Help: "Total alert status evaluations by result",
			},
			[]string{"result"},
		)
		statusLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alert_status_latency_seconds",
				Help:    "Alert status evaluation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		ruleSaves = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_rule_saves_total",
				Help: "Total notification rule saves by result",
			},
			[]string{"result"},
		)

		pollResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_results_total",
				Help: "Total poll tick results by outcome",
			},
			[]string{"outcome"},
		)
		pollSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "poll_subscriptions_active",
				Help: "Currently active alert status subscriptions",
			},
		)

		ownershipViolations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ownership_violations_total",
				Help: "Total fetched rows whose owner did not match the caller",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total measurement history exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_export_latency_seconds",
				Help:    "Measurement history export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			statusEvaluations,
			statusLatency,
			ruleSaves,
			pollResults,
			pollSubscribers,
			ownershipViolations,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveStatusEvaluation records evaluation duration and result.
func ObserveStatusEvaluation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statusEvaluations != nil {
		statusEvaluations.WithLabelValues(result).Inc()
	}
	if statusLatency != nil {
		statusLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncRuleSave increments the rule save counter.
func IncRuleSave(result string) {
	if result == "" {
		result = resultSuccess
	}
	if ruleSaves != nil {
		ruleSaves.WithLabelValues(result).Inc()
	}
}

// IncPollResult increments poll tick outcome counters.
func IncPollResult(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if pollResults != nil {
		pollResults.WithLabelValues(outcome).Inc()
	}
}

// AddPollSubscribers adjusts the active subscription gauge.
func AddPollSubscribers(delta int) {
	if pollSubscribers != nil {
		pollSubscribers.Add(float64(delta))
	}
}

// IncOwnershipViolation increments the ownership violation counter.
func IncOwnershipViolation() {
	if ownershipViolations != nil {
		ownershipViolations.Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	PollOutcomeApplied = pollOutcomeApplied
	PollOutcomeStale   = pollOutcomeStale
	PollOutcomeError   = pollOutcomeError
)
