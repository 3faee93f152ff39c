package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/jmagar/glances-mcp/internal/alerting"
	"github.com/jmagar/glances-mcp/internal/health"
)

// CheckResult is the outcome of an on-demand rule evaluation.
type CheckResult struct {
	Timestamp      time.Time        `json:"timestamp"`
	ServersChecked []string         `json:"servers_checked"`
	NewAlerts      []alerting.Alert `json:"new_alerts"`
	TotalActive    int              `json:"total_active"`
}

// CheckAlertConditions evaluates the configured rules immediately, against
// one server or the whole fleet, and returns the alerts the pass created.
func (s *Service) CheckAlertConditions(ctx context.Context, serverAlias string) (*CheckResult, error) {
	ctx, done := s.observe(ctx, "check_alert_conditions")
	var err error
	defer func() { done(err) }()

	result := &CheckResult{Timestamp: time.Now(), NewAlerts: []alerting.Alert{}}
	if serverAlias != "" {
		created, cerr := s.engine.EvaluateServer(ctx, serverAlias)
		if cerr != nil {
			err = cerr
			return nil, cerr
		}
		result.ServersChecked = []string{serverAlias}
		result.NewAlerts = append(result.NewAlerts, created...)
	} else {
		for _, srv := range s.cfg.EnabledServers() {
			result.ServersChecked = append(result.ServersChecked, srv.Alias)
		}
		result.NewAlerts = append(result.NewAlerts, s.engine.EvaluatePass(ctx)...)
	}

	result.TotalActive = len(s.engine.ActiveAlerts("", ""))
	return result, nil
}

// ActiveAlert is one active alert annotated with its age.
type ActiveAlert struct {
	alerting.Alert
	AgeSeconds float64 `json:"age_seconds"`
}

// ActiveAlertsResult lists active alerts with filter echo and counts.
type ActiveAlertsResult struct {
	Timestamp      time.Time     `json:"timestamp"`
	Alerts         []ActiveAlert `json:"alerts"`
	TotalCount     int           `json:"total_count"`
	CriticalCount  int           `json:"critical_count"`
	WarningCount   int           `json:"warning_count"`
	FilterServer   string        `json:"filter_server,omitempty"`
	FilterSeverity string        `json:"filter_severity,omitempty"`
}

// ActiveAlerts lists currently firing alerts, optionally filtered by server
// and severity, worst and newest first.
func (s *Service) ActiveAlerts(ctx context.Context, serverAlias, severity string) (*ActiveAlertsResult, error) {
	_, done := s.observe(ctx, "get_active_alerts")
	var err error
	defer func() { done(err) }()

	if severity != "" && severity != alerting.SeverityWarning && severity != alerting.SeverityCritical {
		err = fmt.Errorf("severity must be %q or %q", alerting.SeverityWarning, alerting.SeverityCritical)
		return nil, err
	}

	now := time.Now()
	result := &ActiveAlertsResult{
		Timestamp:      now,
		Alerts:         []ActiveAlert{},
		FilterServer:   serverAlias,
		FilterSeverity: severity,
	}
	for _, a := range s.engine.ActiveAlerts(serverAlias, severity) {
		result.Alerts = append(result.Alerts, ActiveAlert{
			Alert:      a,
			AgeSeconds: now.Sub(a.Timestamp).Seconds(),
		})
		switch a.Severity {
		case alerting.SeverityCritical:
			result.CriticalCount++
		case alerting.SeverityWarning:
			result.WarningCount++
		}
	}
	result.TotalCount = len(result.Alerts)
	return result, nil
}

// Alert history parameter bounds.
const (
	MaxHistoryHours = 168
	MaxHistoryLimit = 1000
)

// HistoryStatistics summarizes a history window.
type HistoryStatistics struct {
	TotalAlerts       int     `json:"total_alerts"`
	ResolvedAlerts    int     `json:"resolved_alerts"`
	UnresolvedAlerts  int     `json:"unresolved_alerts"`
	CriticalAlerts    int     `json:"critical_alerts"`
	WarningAlerts     int     `json:"warning_alerts"`
	MeanTimeToResolve float64 `json:"mean_time_to_resolve_seconds"`
	AlertsPerHour     float64 `json:"alerts_per_hour"`
}

// AlertHistoryResult is the windowed alert history with statistics.
type AlertHistoryResult struct {
	Timestamp   time.Time         `json:"timestamp"`
	WindowHours int               `json:"window_hours"`
	Limit       int               `json:"limit"`
	Alerts      []alerting.Alert  `json:"alerts"`
	Statistics  HistoryStatistics `json:"statistics"`
}

// AlertHistory returns past alerts within the trailing window, newest first.
// Hours must be within 1-168 and limit within 1-1000; zero values take the
// defaults of 24 hours and 100 entries.
func (s *Service) AlertHistory(ctx context.Context, serverAlias, severity string, hours, limit int) (*AlertHistoryResult, error) {
	_, done := s.observe(ctx, "get_alert_history")
	var err error
	defer func() { done(err) }()

	if hours == 0 {
		hours = 24
	}
	if limit == 0 {
		limit = 100
	}
	if hours < 1 || hours > MaxHistoryHours {
		err = fmt.Errorf("hours must be between 1 and %d", MaxHistoryHours)
		return nil, err
	}
	if limit < 1 || limit > MaxHistoryLimit {
		err = fmt.Errorf("limit must be between 1 and %d", MaxHistoryLimit)
		return nil, err
	}
	if severity != "" && severity != alerting.SeverityWarning && severity != alerting.SeverityCritical {
		err = fmt.Errorf("severity must be %q or %q", alerting.SeverityWarning, alerting.SeverityCritical)
		return nil, err
	}

	alerts := s.engine.History(serverAlias, severity, hours, limit)
	result := &AlertHistoryResult{
		Timestamp:   time.Now(),
		WindowHours: hours,
		Limit:       limit,
		Alerts:      alerts,
	}

	var resolveSum time.Duration
	for _, a := range alerts {
		result.Statistics.TotalAlerts++
		switch a.Severity {
		case alerting.SeverityCritical:
			result.Statistics.CriticalAlerts++
		case alerting.SeverityWarning:
			result.Statistics.WarningAlerts++
		}
		if a.Resolved && a.ResolvedAt != nil {
			result.Statistics.ResolvedAlerts++
			resolveSum += a.ResolvedAt.Sub(a.Timestamp)
		} else {
			result.Statistics.UnresolvedAlerts++
		}
	}
	if result.Statistics.ResolvedAlerts > 0 {
		result.Statistics.MeanTimeToResolve = resolveSum.Seconds() / float64(result.Statistics.ResolvedAlerts)
	}
	result.Statistics.AlertsPerHour = float64(result.Statistics.TotalAlerts) / float64(hours)

	return result, nil
}

// Alert age bucket bounds.
const (
	alertAgeNew   = time.Hour
	alertAgeStale = 6 * time.Hour
)

// AgeDistribution buckets active alerts by how long they have been firing.
type AgeDistribution struct {
	New    int `json:"new"`
	Recent int `json:"recent"`
	Old    int `json:"old"`
}

// AlertTrend labels the short-term alert rate direction.
type AlertTrend struct {
	Direction    string `json:"direction"`
	AlertsLastHr int    `json:"alerts_last_hour"`
	Alerts24h    int    `json:"alerts_24h"`
}

// SummaryHealth is the fleet verdict derived from the active alert mix.
type SummaryHealth struct {
	Status         string `json:"status"`
	CriticalAlerts int    `json:"critical_alerts"`
	StaleAlerts    int    `json:"stale_alerts"`
}

// AlertSummaryResult is the enriched fleet alert summary.
type AlertSummaryResult struct {
	Timestamp            time.Time        `json:"timestamp"`
	Summary              alerting.Summary `json:"summary"`
	AgeDistribution      AgeDistribution  `json:"age_distribution"`
	Trend                AlertTrend       `json:"trend"`
	Health               SummaryHealth    `json:"health"`
	EscalationCandidates []ActiveAlert    `json:"escalation_candidates"`
}

// AlertSummary computes fleet-wide alert statistics enriched with age
// distribution, rate trend, a health verdict, and warnings old enough to
// deserve escalation.
func (s *Service) AlertSummary(ctx context.Context) (*AlertSummaryResult, error) {
	_, done := s.observe(ctx, "get_alert_summary")
	var err error
	defer func() { done(err) }()

	now := time.Now()
	result := &AlertSummaryResult{
		Timestamp:            now,
		Summary:              s.engine.Summary(),
		EscalationCandidates: []ActiveAlert{},
	}

	active := s.engine.ActiveAlerts("", "")
	for _, a := range active {
		age := now.Sub(a.Timestamp)
		switch {
		case age < alertAgeNew:
			result.AgeDistribution.New++
		case age < alertAgeStale:
			result.AgeDistribution.Recent++
		default:
			result.AgeDistribution.Old++
			if a.Severity == alerting.SeverityWarning {
				result.EscalationCandidates = append(result.EscalationCandidates, ActiveAlert{
					Alert:      a,
					AgeSeconds: age.Seconds(),
				})
			}
		}
	}

	result.Trend = alertTrend(
		len(s.engine.History("", "", 1, MaxHistoryLimit)),
		result.Summary.RecentAlerts24h,
	)

	result.Health = SummaryHealth{
		CriticalAlerts: result.Summary.CriticalCount,
		StaleAlerts:    result.AgeDistribution.Old,
	}
	switch {
	case result.Summary.CriticalCount == 0:
		result.Health.Status = health.StatusHealthy
	case result.Summary.CriticalCount > 3:
		result.Health.Status = health.StatusCritical
	default:
		result.Health.Status = health.StatusWarning
	}

	return result, nil
}

// alertTrend classifies the last hour's alert rate against the 24h average.
// Twice the average is increasing; a quiet hour after a noisy day is
// decreasing; anything else is stable.
func alertTrend(lastHour, last24h int) AlertTrend {
	t := AlertTrend{Direction: "stable", AlertsLastHr: lastHour, Alerts24h: last24h}
	hourlyAverage := float64(last24h) / 24
	switch {
	case float64(lastHour) > hourlyAverage*2 && lastHour > 0:
		t.Direction = "increasing"
	case lastHour == 0 && last24h > 0:
		t.Direction = "decreasing"
	}
	return t
}
