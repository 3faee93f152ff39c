package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/glances"
	"github.com/jmagar/glances-mcp/internal/metricpath"
	"github.com/jmagar/glances-mcp/internal/metrics"
)

// Source supplies the live data an evaluation pass needs.
type Source interface {
	FetchAllStats(ctx context.Context) map[string]map[string]any
	HealthCheckAll(ctx context.Context) ([]glances.ServerStatus, error)
}

// Engine evaluates alert rules and owns the alert lifecycle.
type Engine struct {
	source Source
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	active    map[string]*Alert
	history   []Alert
	cooldowns map[string]time.Time
}

// NewEngine creates an engine over the given source and fleet config.
func NewEngine(source Source, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		source:    source,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		active:    make(map[string]*Alert),
		cooldowns: make(map[string]time.Time),
	}
}

func alertID(serverAlias, ruleName, metricPath string) string {
	return serverAlias + ":" + ruleName + ":" + metricPath
}

// EvaluatePass runs every enabled rule against every enabled server's
// current stats and returns the alerts created by this pass. During a
// suppressing maintenance window no rules are evaluated and existing alerts
// are left untouched.
func (e *Engine) EvaluatePass(ctx context.Context) []Alert {
	start := time.Now()
	defer func() {
		metrics.ObserveEvaluationPass(time.Since(start))
		e.publishActiveCounts()
	}()

	if InMaintenanceWindow(e.cfg.MaintenanceWindows, e.now()) {
		e.logger.Debug("evaluation skipped, maintenance window active")
		return nil
	}

	stats := e.source.FetchAllStats(ctx)

	var created []Alert
	for i := range e.cfg.Servers {
		server := &e.cfg.Servers[i]
		if !server.IsEnabled() {
			continue
		}
		serverStats, ok := stats[server.Alias]
		if !ok {
			continue
		}
		created = append(created, e.evaluateServer(server, serverStats)...)
	}
	return created
}

// EvaluateServer runs the rules against a single server's stats on demand.
func (e *Engine) EvaluateServer(ctx context.Context, serverAlias string) ([]Alert, error) {
	server := e.cfg.ServerByAlias(serverAlias)
	if server == nil {
		return nil, fmt.Errorf("%w: %q", glances.ErrUnknownServer, serverAlias)
	}
	if InMaintenanceWindow(e.cfg.MaintenanceWindows, e.now()) {
		return nil, nil
	}

	stats, ok := e.source.FetchAllStats(ctx)[serverAlias]
	if !ok {
		return nil, fmt.Errorf("no stats available for %q", serverAlias)
	}

	created := e.evaluateServer(server, stats)
	e.publishActiveCounts()
	return created, nil
}

func (e *Engine) evaluateServer(server *config.Server, stats map[string]any) []Alert {
	var created []Alert
	for i := range e.cfg.AlertRules {
		rule := &e.cfg.AlertRules[i]
		if !rule.IsEnabled() || !matchesFilters(rule, server) {
			continue
		}

		value, ok := metricpath.Float(stats, rule.MetricPath)
		if !ok {
			e.logger.Warn("metric path not resolvable",
				"server_alias", server.Alias,
				"rule_name", rule.Name,
				"metric_path", rule.MetricPath,
			)
			continue
		}

		if alert := e.applyRule(server, rule, value); alert != nil {
			created = append(created, *alert)
		}
	}
	return created
}

// applyRule reconciles one rule's outcome with the active set. A value back
// under threshold always resolves; cooldown only blocks creating or
// escalating alerts.
func (e *Engine) applyRule(server *config.Server, rule *config.AlertRule, value float64) *Alert {
	id := alertID(server.Alias, rule.Name, rule.MetricPath)
	severity := evaluateThreshold(value, &rule.Thresholds)

	e.mu.Lock()
	defer e.mu.Unlock()

	if severity == "" {
		e.resolveLocked(id)
		return nil
	}

	if existing, ok := e.active[id]; ok && existing.Severity == severity {
		return nil
	}

	if until, ok := e.cooldowns[id]; ok && e.now().Before(until) {
		e.logger.Debug("alert in cooldown",
			"alert_id", id,
			"cooldown_until", until.Format(time.RFC3339),
		)
		return nil
	}

	if _, ok := e.active[id]; ok {
		e.supersedeLocked(id)
	}

	threshold := rule.Thresholds.Warning
	if severity == SeverityCritical {
		threshold = rule.Thresholds.Critical
	}

	alert := Alert{
		ID:             id,
		RuleName:       rule.Name,
		ServerAlias:    server.Alias,
		MetricPath:     rule.MetricPath,
		Severity:       severity,
		CurrentValue:   value,
		ThresholdValue: threshold,
		Message:        alertMessage(rule, server, value, threshold, severity),
		Timestamp:      e.now(),
		Tags: map[string]any{
			"environment": string(server.Environment),
			"region":      server.Region,
			"server_tags": server.Tags,
		},
	}

	e.active[id] = &alert
	e.history = append(e.history, alert)
	e.cooldowns[id] = e.now().Add(time.Duration(rule.CooldownMinutes) * time.Minute)
	metrics.AlertTriggered(severity)

	e.logger.Warn("alert triggered",
		"alert_id", id,
		"server_alias", server.Alias,
		"rule_name", rule.Name,
		"severity", severity,
		"current_value", value,
		"threshold_value", threshold,
	)
	return &alert
}

// evaluateThreshold returns the triggered severity, or "" when the value is
// within bounds. Critical wins when both bounds are crossed.
func evaluateThreshold(value float64, t *config.Threshold) string {
	switch t.Comparison {
	case config.ComparisonGT:
		if value >= t.Critical {
			return SeverityCritical
		}
		if value >= t.Warning {
			return SeverityWarning
		}
	case config.ComparisonLT:
		if value <= t.Critical {
			return SeverityCritical
		}
		if value <= t.Warning {
			return SeverityWarning
		}
	case config.ComparisonEQ:
		if value == t.Critical {
			return SeverityCritical
		}
		if value == t.Warning {
			return SeverityWarning
		}
	}
	return ""
}

func matchesFilters(rule *config.AlertRule, server *config.Server) bool {
	if len(rule.ServerFilter) > 0 && !containsString(rule.ServerFilter, server.Alias) {
		return false
	}
	if len(rule.EnvironmentFilter) > 0 {
		found := false
		for _, env := range rule.EnvironmentFilter {
			if env == server.Environment {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(rule.TagFilter) > 0 {
		found := false
		for _, tag := range rule.TagFilter {
			if containsString(server.Tags, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func alertMessage(rule *config.AlertRule, server *config.Server, value, threshold float64, severity string) string {
	comparison := "compared to"
	switch rule.Thresholds.Comparison {
	case config.ComparisonGT:
		comparison = "above"
	case config.ComparisonLT:
		comparison = "below"
	case config.ComparisonEQ:
		comparison = "equal to"
	}
	unit := rule.Thresholds.Unit
	return fmt.Sprintf("%s: %s on %s is %s threshold. Current: %v%s, Threshold: %v%s",
		strings.ToUpper(severity), rule.MetricPath, server.Alias, comparison,
		value, unit, threshold, unit)
}

// resolveLocked marks an active alert resolved and drops it from the active
// set. The history entry keeps the resolved state.
func (e *Engine) resolveLocked(id string) {
	alert, ok := e.active[id]
	if !ok {
		return
	}
	now := e.now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	delete(e.active, id)

	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id && !e.history[i].Resolved {
			e.history[i].Resolved = true
			e.history[i].ResolvedAt = &now
			break
		}
	}

	e.logger.Info("alert resolved",
		"alert_id", id,
		"server_alias", alert.ServerAlias,
		"rule_name", alert.RuleName,
	)
}

// supersedeLocked closes out the history entry of an alert that is about to
// be replaced at a different severity. The active slot is overwritten by the
// caller, so only the history entry needs marking.
func (e *Engine) supersedeLocked(id string) {
	now := e.now()
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id && !e.history[i].Resolved {
			e.history[i].Resolved = true
			e.history[i].ResolvedAt = &now
			return
		}
	}
}

const healthRuleName = "server_health"

// CheckServerHealth raises alerts for servers whose health probe is in a
// warning or critical state, and resolves them once the probe recovers.
func (e *Engine) CheckServerHealth(ctx context.Context) []Alert {
	statuses, err := e.source.HealthCheckAll(ctx)
	if err != nil {
		e.logger.Error("health check pass failed", "error", err)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var created []Alert
	for _, status := range statuses {
		id := alertID(status.Alias, healthRuleName, "health.status")

		if status.Health.Status != glances.StatusWarning && status.Health.Status != glances.StatusCritical {
			e.resolveLocked(id)
			continue
		}
		if existing, ok := e.active[id]; ok {
			if existing.Severity == status.Health.Status {
				continue
			}
			e.supersedeLocked(id)
		}

		value := 0.5
		if status.Health.Status == glances.StatusCritical {
			value = 1.0
		}
		alert := Alert{
			ID:           id,
			RuleName:     healthRuleName,
			ServerAlias:  status.Alias,
			MetricPath:   "health.status",
			Severity:     status.Health.Status,
			CurrentValue: value,
			Message:      fmt.Sprintf("Server health check failed: %s", status.Health.Message),
			Timestamp:    e.now(),
			Tags: map[string]any{
				"health_check":     true,
				"response_time_ms": status.ResponseTimeMs,
			},
		}
		e.active[id] = &alert
		e.history = append(e.history, alert)
		created = append(created, alert)
		metrics.AlertTriggered(alert.Severity)
	}
	return created
}

// ActiveAlerts returns active alerts, optionally filtered by server and
// severity, ordered by severity (critical first) then most recent first.
func (e *Engine) ActiveAlerts(serverAlias, severity string) []Alert {
	e.mu.Lock()
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		if serverAlias != "" && a.ServerAlias != serverAlias {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, *a)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := severityRank(out[i].Severity), severityRank(out[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// History returns past alerts within the trailing window, newest first.
// Non-positive hours defaults to 24 and non-positive limit to 100.
func (e *Engine) History(serverAlias, severity string, hours, limit int) []Alert {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := e.now().Add(-time.Duration(hours) * time.Hour)

	e.mu.Lock()
	var out []Alert
	for _, a := range e.history {
		if a.Timestamp.Before(cutoff) {
			continue
		}
		if serverAlias != "" && a.ServerAlias != serverAlias {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, a)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summary computes fleet-wide alert statistics.
func (e *Engine) Summary() Summary {
	active := e.ActiveAlerts("", "")

	s := Summary{
		TotalActive:     len(active),
		RecentAlerts24h: len(e.History("", "", 24, 0)),
	}

	servers := make(map[string]*ServerAlertCount)
	for _, a := range active {
		switch a.Severity {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityWarning:
			s.WarningCount++
		}
		sc, ok := servers[a.ServerAlias]
		if !ok {
			sc = &ServerAlertCount{ServerAlias: a.ServerAlias}
			servers[a.ServerAlias] = sc
		}
		switch a.Severity {
		case SeverityCritical:
			sc.CriticalAlerts++
		case SeverityWarning:
			sc.WarningAlerts++
		}
		sc.TotalAlerts++
	}
	s.ServersWithAlerts = len(servers)

	top := make([]ServerAlertCount, 0, len(servers))
	for _, sc := range servers {
		top = append(top, *sc)
	}
	sort.Slice(top, func(i, j int) bool {
		wi := top[i].CriticalAlerts*2 + top[i].WarningAlerts
		wj := top[j].CriticalAlerts*2 + top[j].WarningAlerts
		if wi != wj {
			return wi > wj
		}
		return top[i].ServerAlias < top[j].ServerAlias
	})
	if len(top) > 5 {
		top = top[:5]
	}
	s.TopAlertingServers = top

	rules := make(map[string]int)
	for _, a := range e.History("", "", 24, 0) {
		rules[a.RuleName]++
	}
	common := make([]RuleAlertCount, 0, len(rules))
	for name, count := range rules {
		common = append(common, RuleAlertCount{RuleName: name, Count: count})
	}
	sort.Slice(common, func(i, j int) bool {
		if common[i].Count != common[j].Count {
			return common[i].Count > common[j].Count
		}
		return common[i].RuleName < common[j].RuleName
	})
	if len(common) > 5 {
		common = common[:5]
	}
	s.MostCommonAlerts = common

	return s
}

// CleanupHistory drops history entries older than the configured retention
// and returns how many were removed.
func (e *Engine) CleanupHistory() int {
	cutoff := e.now().Add(-time.Duration(e.cfg.AlertHistoryRetentionDays) * 24 * time.Hour)

	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.history[:0]
	for _, a := range e.history {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(e.history) - len(kept)
	e.history = kept

	if removed > 0 {
		e.logger.Info("alert history pruned",
			"removed", removed,
			"retained", len(e.history),
			"retention_days", e.cfg.AlertHistoryRetentionDays,
		)
	}
	return removed
}

func (e *Engine) publishActiveCounts() {
	e.mu.Lock()
	var warning, critical int
	for _, a := range e.active {
		switch a.Severity {
		case SeverityWarning:
			warning++
		case SeverityCritical:
			critical++
		}
	}
	e.mu.Unlock()
	metrics.SetActiveAlerts(warning, critical)
}

// Run evaluates rules and health alerts at the given interval until the
// context is cancelled. History is pruned roughly hourly.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("alert monitoring started", "interval", interval.String())
	lastCleanup := time.Now()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("alert monitoring stopped")
			return
		case <-ticker.C:
			created := e.EvaluatePass(ctx)
			healthAlerts := e.CheckServerHealth(ctx)
			if len(created) > 0 || len(healthAlerts) > 0 {
				e.mu.Lock()
				totalActive := len(e.active)
				e.mu.Unlock()
				e.logger.Info("alert evaluation completed",
					"new_alerts", len(created),
					"health_alerts", len(healthAlerts),
					"total_active", totalActive,
				)
			}
			if time.Since(lastCleanup) >= time.Hour {
				e.CleanupHistory()
				lastCleanup = time.Now()
			}
		}
	}
}
