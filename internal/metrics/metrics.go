// Package metrics provides Prometheus self-metrics for glances-mcp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for fetch and evaluation metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	sourceFetchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glances_mcp",
			Name:      "source_fetch_seconds",
			Help:      "Latency of Glances API fetches, partitioned by server and endpoint.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"server", "endpoint"},
	)

	sourceFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glances_mcp",
			Name:      "source_fetch_errors_total",
			Help:      "Total failed Glances API fetches after retries, partitioned by server.",
		},
		[]string{"server"},
	)

	evaluationPassSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "glances_mcp",
			Name:      "alert_evaluation_seconds",
			Help:      "Duration of full alert evaluation passes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	activeAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glances_mcp",
			Name:      "active_alerts",
			Help:      "Currently active alerts, partitioned by severity.",
		},
		[]string{"severity"},
	)

	alertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glances_mcp",
			Name:      "alerts_triggered_total",
			Help:      "Total alerts created, partitioned by severity.",
		},
		[]string{"severity"},
	)

	baselineCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "glances_mcp",
			Name:      "baseline_cache_entries",
			Help:      "Number of cached performance baselines.",
		},
	)

	samplesRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glances_mcp",
			Name:      "samples_recorded_total",
			Help:      "Metric samples appended to rolling buffers, partitioned by server.",
		},
		[]string{"server"},
	)

	toolCallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glances_mcp",
			Name:      "tool_call_seconds",
			Help:      "Latency of façade tool operations, partitioned by tool and outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool", "outcome"},
	)
)

// Register attaches all glances-mcp collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		sourceFetchSeconds,
		sourceFetchErrorsTotal,
		evaluationPassSeconds,
		activeAlerts,
		alertsTriggeredTotal,
		baselineCacheSize,
		samplesRecordedTotal,
		toolCallSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSourceFetch records one Glances API call.
func ObserveSourceFetch(server, endpoint string, duration time.Duration, err error) {
	sourceFetchSeconds.WithLabelValues(server, endpoint).Observe(duration.Seconds())
	if err != nil {
		sourceFetchErrorsTotal.WithLabelValues(server).Inc()
	}
}

// ObserveEvaluationPass records the duration of an alert evaluation pass.
func ObserveEvaluationPass(duration time.Duration) {
	evaluationPassSeconds.Observe(duration.Seconds())
}

// SetActiveAlerts publishes the current active-alert counts.
func SetActiveAlerts(warning, critical int) {
	activeAlerts.WithLabelValues("warning").Set(float64(warning))
	activeAlerts.WithLabelValues("critical").Set(float64(critical))
}

// AlertTriggered counts a newly created alert.
func AlertTriggered(severity string) {
	alertsTriggeredTotal.WithLabelValues(severity).Inc()
}

// SetBaselineCacheSize publishes the baseline cache entry count.
func SetBaselineCacheSize(n int) {
	baselineCacheSize.Set(float64(n))
}

// SampleRecorded counts one buffered metric sample.
func SampleRecorded(server string) {
	samplesRecordedTotal.WithLabelValues(server).Inc()
}

// ObserveToolCall records one façade operation.
func ObserveToolCall(tool string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	toolCallSeconds.WithLabelValues(tool, outcome).Observe(duration.Seconds())
}
