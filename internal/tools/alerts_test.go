package tools

import (
	"context"
	"testing"

	"github.com/jmagar/glances-mcp/internal/alerting"
	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/health"
)

// alertTestService wires one stubbed server with a cpu.total threshold rule.
func alertTestService(t *testing.T, cpuTotal string) *Service {
	t.Helper()
	ts := glancesStub(map[string]string{
		"/api/3/all": `{"cpu":{"total":` + cpuTotal + `}}`,
	})
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		Servers: []config.Server{serverFromURL(t, ts.URL, "test")},
		AlertRules: []config.AlertRule{
			{
				Name:       "high_cpu",
				MetricPath: "cpu.total",
				Thresholds: config.Threshold{
					Warning:    80,
					Critical:   90,
					Comparison: config.ComparisonGT,
					Unit:       "%",
				},
				CooldownMinutes: 15,
			},
		},
	}
	return newTestService(t, cfg)
}

func TestCheckAlertConditions(t *testing.T) {
	svc := alertTestService(t, "95.0")

	result, err := svc.CheckAlertConditions(context.Background(), "")
	if err != nil {
		t.Fatalf("CheckAlertConditions() error = %v", err)
	}
	if len(result.ServersChecked) != 1 || result.ServersChecked[0] != "test" {
		t.Errorf("ServersChecked = %v, want [test]", result.ServersChecked)
	}
	if len(result.NewAlerts) != 1 {
		t.Fatalf("new alert count = %d, want 1", len(result.NewAlerts))
	}
	a := result.NewAlerts[0]
	if a.Severity != alerting.SeverityCritical || a.RuleName != "high_cpu" {
		t.Errorf("alert = %s/%s, want critical/high_cpu", a.Severity, a.RuleName)
	}
	if result.TotalActive != 1 {
		t.Errorf("TotalActive = %d, want 1", result.TotalActive)
	}
}

func TestCheckAlertConditionsSingleServer(t *testing.T) {
	svc := alertTestService(t, "50.0")

	result, err := svc.CheckAlertConditions(context.Background(), "test")
	if err != nil {
		t.Fatalf("CheckAlertConditions(test) error = %v", err)
	}
	if len(result.NewAlerts) != 0 {
		t.Errorf("new alerts = %v, want none under threshold", result.NewAlerts)
	}

	if _, err := svc.CheckAlertConditions(context.Background(), "nope"); err == nil {
		t.Error("CheckAlertConditions(nope) error = nil, want unknown alias error")
	}
}

func TestActiveAlerts(t *testing.T) {
	svc := alertTestService(t, "95.0")
	ctx := context.Background()
	if _, err := svc.CheckAlertConditions(ctx, ""); err != nil {
		t.Fatalf("seed evaluation error = %v", err)
	}

	result, err := svc.ActiveAlerts(ctx, "", "")
	if err != nil {
		t.Fatalf("ActiveAlerts() error = %v", err)
	}
	if result.TotalCount != 1 || result.CriticalCount != 1 {
		t.Errorf("counts = %d total / %d critical, want 1/1", result.TotalCount, result.CriticalCount)
	}
	if result.Alerts[0].AgeSeconds < 0 {
		t.Errorf("AgeSeconds = %v, want non-negative", result.Alerts[0].AgeSeconds)
	}

	filtered, err := svc.ActiveAlerts(ctx, "", alerting.SeverityWarning)
	if err != nil {
		t.Fatalf("ActiveAlerts(warning) error = %v", err)
	}
	if filtered.TotalCount != 0 {
		t.Errorf("warning-filtered count = %d, want 0", filtered.TotalCount)
	}

	if _, err := svc.ActiveAlerts(ctx, "", "catastrophic"); err == nil {
		t.Error("ActiveAlerts(catastrophic) error = nil, want severity validation error")
	}
}

func TestAlertHistory(t *testing.T) {
	svc := alertTestService(t, "95.0")
	ctx := context.Background()
	if _, err := svc.CheckAlertConditions(ctx, ""); err != nil {
		t.Fatalf("seed evaluation error = %v", err)
	}

	result, err := svc.AlertHistory(ctx, "", "", 0, 0)
	if err != nil {
		t.Fatalf("AlertHistory() error = %v", err)
	}
	if result.WindowHours != 24 || result.Limit != 100 {
		t.Errorf("defaults = %dh/%d, want 24h/100", result.WindowHours, result.Limit)
	}
	if result.Statistics.TotalAlerts != 1 || result.Statistics.CriticalAlerts != 1 {
		t.Errorf("statistics = %+v, want 1 critical alert", result.Statistics)
	}
	if result.Statistics.UnresolvedAlerts != 1 {
		t.Errorf("UnresolvedAlerts = %d, want 1", result.Statistics.UnresolvedAlerts)
	}
}

func TestAlertHistoryValidation(t *testing.T) {
	svc := alertTestService(t, "50.0")
	ctx := context.Background()

	if _, err := svc.AlertHistory(ctx, "", "", 200, 10); err == nil {
		t.Error("AlertHistory(200h) error = nil, want bounds error")
	}
	if _, err := svc.AlertHistory(ctx, "", "", 24, 2000); err == nil {
		t.Error("AlertHistory(limit 2000) error = nil, want bounds error")
	}
	if _, err := svc.AlertHistory(ctx, "", "fatal", 24, 10); err == nil {
		t.Error("AlertHistory(fatal) error = nil, want severity validation error")
	}
}

func TestAlertSummaryQuietFleet(t *testing.T) {
	svc := alertTestService(t, "50.0")

	result, err := svc.AlertSummary(context.Background())
	if err != nil {
		t.Fatalf("AlertSummary() error = %v", err)
	}
	if result.Summary.TotalActive != 0 {
		t.Errorf("TotalActive = %d, want 0", result.Summary.TotalActive)
	}
	if result.Health.Status != health.StatusHealthy {
		t.Errorf("health status = %q, want healthy", result.Health.Status)
	}
	if result.Trend.Direction != "stable" {
		t.Errorf("trend = %q, want stable", result.Trend.Direction)
	}
}

func TestAlertSummaryWithCritical(t *testing.T) {
	svc := alertTestService(t, "95.0")
	ctx := context.Background()
	if _, err := svc.CheckAlertConditions(ctx, ""); err != nil {
		t.Fatalf("seed evaluation error = %v", err)
	}

	result, err := svc.AlertSummary(ctx)
	if err != nil {
		t.Fatalf("AlertSummary() error = %v", err)
	}
	if result.Summary.CriticalCount != 1 {
		t.Fatalf("CriticalCount = %d, want 1", result.Summary.CriticalCount)
	}
	if result.Health.Status != health.StatusWarning {
		t.Errorf("health status = %q, want warning for a single critical", result.Health.Status)
	}
	if result.AgeDistribution.New != 1 {
		t.Errorf("AgeDistribution.New = %d, want 1", result.AgeDistribution.New)
	}
	if result.Trend.Direction != "increasing" {
		t.Errorf("trend = %q, want increasing", result.Trend.Direction)
	}
	if len(result.EscalationCandidates) != 0 {
		t.Errorf("EscalationCandidates = %v, want none for a fresh alert", result.EscalationCandidates)
	}
}

func TestAlertTrendClassification(t *testing.T) {
	tests := []struct {
		name     string
		lastHour int
		last24h  int
		want     string
	}{
		{"quiet", 0, 0, "stable"},
		{"steady", 1, 24, "stable"},
		{"spiking", 5, 24, "increasing"},
		{"calming", 0, 10, "decreasing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alertTrend(tt.lastHour, tt.last24h).Direction; got != tt.want {
				t.Errorf("alertTrend(%d, %d) = %q, want %q", tt.lastHour, tt.last24h, got, tt.want)
			}
		})
	}
}
