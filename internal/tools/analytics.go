package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/capacity"
	"github.com/jmagar/glances-mcp/internal/health"
	"github.com/jmagar/glances-mcp/internal/metricpath"
)

// ServerHealth is one server's report in a HealthScore result. A collection
// failure yields an error-status report with Error set.
type ServerHealth struct {
	health.Report
	Error string `json:"error,omitempty"`
}

// HealthScoreResult is the fleet health assessment.
type HealthScoreResult struct {
	Servers      map[string]ServerHealth `json:"servers"`
	FleetSummary *health.FleetSummary    `json:"fleet_summary,omitempty"`
}

// HealthScore computes composite health reports per server, plus a fleet
// summary when more than one server is assessed. Custom component weights
// override the default weighting for this call only.
func (s *Service) HealthScore(ctx context.Context, serverAlias string, weights health.Weights) (*HealthScoreResult, error) {
	ctx, done := s.observe(ctx, "generate_health_score")
	var err error
	defer func() { done(err) }()

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	scorer := s.scorer
	if len(weights) > 0 {
		scorer = health.NewScorer(weights, s.logger)
	}

	result := &HealthScoreResult{Servers: make(map[string]ServerHealth, len(clients))}
	reports := make([]health.Report, 0, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		m, ferr := health.Collect(ctx, c, s.logger)
		if ferr != nil {
			s.logger.Warn("health metric collection failed", "server_alias", alias, "error", ferr)
			report := health.Report{ServerAlias: alias, Timestamp: time.Now(), Status: health.StatusError}
			result.Servers[alias] = ServerHealth{Report: report, Error: ferr.Error()}
			reports = append(reports, report)
			continue
		}
		report := scorer.Score(alias, m)
		result.Servers[alias] = ServerHealth{Report: report}
		reports = append(reports, report)
	}

	if len(reports) > 1 {
		summary := health.Summarize(reports)
		result.FleetSummary = &summary
	}
	return result, nil
}

// comparisonThreshold is the z-score bound for flagging a metric in a
// performance comparison.
const comparisonThreshold = 2.0

// deviationTrackingZScore is the z-score magnitude above which a comparison
// counts toward the significant-deviation total.
const deviationTrackingZScore = 1.5

// comparisonTrendWindow is how far back trends look in a comparison.
const comparisonTrendWindow = 24 * time.Hour

// defaultComparisonMetrics are compared when the caller names none.
var defaultComparisonMetrics = []string{"cpu.total", "mem.percent", "load.min5"}

// MetricComparison relates one metric's current value to its baseline.
// Status no_baseline means there is no history to compare against.
type MetricComparison struct {
	baseline.Comparison
	Trend   *baseline.Trend `json:"trend,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ComparisonStatusNoBaseline marks metrics without baseline history.
const ComparisonStatusNoBaseline = "no_baseline"

// ServerComparison is one server's performance comparison.
type ServerComparison struct {
	ServerAlias           string                      `json:"server_alias"`
	Timestamp             time.Time                   `json:"timestamp"`
	Error                 string                      `json:"error,omitempty"`
	Metrics               map[string]MetricComparison `json:"metrics,omitempty"`
	OverallStatus         string                      `json:"overall_status,omitempty"`
	SignificantDeviations int                         `json:"significant_deviations"`
}

// PerformanceComparison compares current metric values against their learned
// baselines per server. The overall status is the worst metric status.
func (s *Service) PerformanceComparison(ctx context.Context, serverAlias string, metricPaths []string) (map[string]ServerComparison, error) {
	ctx, done := s.observe(ctx, "performance_comparison")
	var err error
	defer func() { done(err) }()

	if len(metricPaths) == 0 {
		metricPaths = defaultComparisonMetrics
	}

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ServerComparison, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		stats, ferr := c.AllStats(ctx)
		if ferr != nil {
			s.logger.Warn("stats fetch failed", "server_alias", alias, "error", ferr)
			out[alias] = ServerComparison{ServerAlias: alias, Timestamp: time.Now(), Error: ferr.Error()}
			continue
		}

		sc := ServerComparison{
			ServerAlias:   alias,
			Timestamp:     time.Now(),
			Metrics:       make(map[string]MetricComparison, len(metricPaths)),
			OverallStatus: baseline.DeviationNormal,
		}
		for _, path := range metricPaths {
			current, ok := statFloat(stats, path)
			if !ok {
				sc.Metrics[path] = MetricComparison{
					Comparison: baseline.Comparison{Status: ComparisonStatusNoBaseline},
					Message:    "metric not available from server",
				}
				continue
			}

			b, berr := s.store.BaselineFor(alias, path)
			if berr != nil {
				sc.Metrics[path] = MetricComparison{
					Comparison: baseline.Comparison{Current: current, Status: ComparisonStatusNoBaseline},
					Message:    "no baseline history for metric",
				}
				continue
			}

			cmp := b.Compare(current, comparisonThreshold)
			mc := MetricComparison{Comparison: cmp}
			if trend := s.store.Trend(alias, path, comparisonTrendWindow); trend.Direction != baseline.TrendInsufficient {
				t := trend
				mc.Trend = &t
			}
			sc.Metrics[path] = mc

			if math.Abs(cmp.ZScore) > deviationTrackingZScore {
				sc.SignificantDeviations++
			}
			sc.OverallStatus = worseDeviation(sc.OverallStatus, cmp.Status)
		}
		out[alias] = sc
	}
	return out, nil
}

// worseDeviation keeps the worst of two deviation statuses.
func worseDeviation(a, b string) string {
	rank := func(s string) int {
		switch s {
		case baseline.DeviationCritical:
			return 2
		case baseline.DeviationWarning:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// statFloat resolves a dot-notation path against a stats document.
func statFloat(stats map[string]any, path string) (float64, bool) {
	return metricpath.Float(stats, path)
}

// Anomaly detection bounds and defaults.
const (
	DefaultAnomalyThresholdStd = 2.0
	DefaultAnomalyWindowHours  = 6
	minAnomalySamples          = 10
	recentAnomalySamples       = 5
)

// DetectedAnomaly is one flagged sample with a tool-level severity.
type DetectedAnomaly struct {
	MetricPath string    `json:"metric_path"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	ZScore     float64   `json:"z_score"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
}

// AnomalyParams echoes the effective detection parameters.
type AnomalyParams struct {
	ThresholdStd float64 `json:"threshold_std"`
	WindowHours  int     `json:"window_hours"`
}

// ServerAnomalies is one server's anomaly detection result.
type ServerAnomalies struct {
	ServerAlias     string            `json:"server_alias"`
	Timestamp       time.Time         `json:"timestamp"`
	Parameters      AnomalyParams     `json:"parameters"`
	Anomalies       []DetectedAnomaly `json:"anomalies"`
	MetricsAnalyzed []string          `json:"metrics_analyzed"`
	MetricsSkipped  []string          `json:"metrics_skipped,omitempty"`
}

// DetectAnomalies flags recent statistical outliers in each server's buffered
// history. Only anomalies among the most recent samples are reported; metrics
// with too little history are listed as skipped.
func (s *Service) DetectAnomalies(ctx context.Context, serverAlias string, thresholdStd float64, windowHours int) (map[string]ServerAnomalies, error) {
	_, done := s.observe(ctx, "detect_anomalies")
	var err error
	defer func() { done(err) }()

	if thresholdStd <= 0 {
		thresholdStd = DefaultAnomalyThresholdStd
	}
	if windowHours <= 0 {
		windowHours = DefaultAnomalyWindowHours
	}

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ServerAnomalies, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		sa := ServerAnomalies{
			ServerAlias: alias,
			Timestamp:   time.Now(),
			Parameters:  AnomalyParams{ThresholdStd: thresholdStd, WindowHours: windowHours},
			Anomalies:   []DetectedAnomaly{},
		}

		for _, path := range s.store.MetricPaths(alias) {
			samples := s.store.Samples(alias, path)
			if len(samples) <= minAnomalySamples {
				sa.MetricsSkipped = append(sa.MetricsSkipped, path)
				continue
			}
			sa.MetricsAnalyzed = append(sa.MetricsAnalyzed, path)

			recentCutoff := samples[len(samples)-recentAnomalySamples].Timestamp
			for _, a := range baseline.DetectAnomalies(samples, thresholdStd) {
				if a.Timestamp.Before(recentCutoff) {
					continue
				}
				severity := "warning"
				if math.Abs(a.ZScore) > thresholdStd*2 {
					severity = "critical"
				}
				sa.Anomalies = append(sa.Anomalies, DetectedAnomaly{
					MetricPath: path,
					Timestamp:  a.Timestamp,
					Value:      a.Value,
					ZScore:     a.ZScore,
					Kind:       a.Kind,
					Severity:   severity,
				})
			}
		}
		out[alias] = sa
	}
	return out, nil
}

// ServerAnalysis is one server's capacity analysis entry. A fetch failure
// leaves Analysis nil and sets Error.
type ServerAnalysis struct {
	ServerAlias string             `json:"server_alias"`
	Error       string             `json:"error,omitempty"`
	Analysis    *capacity.Analysis `json:"analysis,omitempty"`
}

// CapacityAnalysis assesses current utilization and short-horizon growth per
// server.
func (s *Service) CapacityAnalysis(ctx context.Context, serverAlias string, projectionDays int) (map[string]ServerAnalysis, error) {
	ctx, done := s.observe(ctx, "capacity_analysis")
	var err error
	defer func() { done(err) }()

	if projectionDays < 0 || projectionDays > capacity.MaxProjectionDays {
		err = fmt.Errorf("projection_days must be between 1 and %d", capacity.MaxProjectionDays)
		return nil, err
	}

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ServerAnalysis, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		analysis, ferr := s.projector.Analyze(ctx, c, projectionDays)
		if ferr != nil {
			s.logger.Warn("capacity analysis failed", "server_alias", alias, "error", ferr)
			out[alias] = ServerAnalysis{ServerAlias: alias, Error: ferr.Error()}
			continue
		}
		out[alias] = ServerAnalysis{ServerAlias: alias, Analysis: analysis}
	}
	return out, nil
}
