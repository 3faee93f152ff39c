// Package alerting evaluates configured alert rules against live metrics and
// manages the resulting alert lifecycle: creation, escalation, cooldown,
// maintenance suppression, resolution, and bounded history.
package alerting

import "time"

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// severityRank orders severities for sorting, highest first.
func severityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Alert is one triggered rule instance on one server. The ID is stable
// across a rule's lifetime on a server: server_alias:rule_name:metric_path.
type Alert struct {
	ID             string         `json:"id"`
	RuleName       string         `json:"rule_name"`
	ServerAlias    string         `json:"server_alias"`
	MetricPath     string         `json:"metric_path"`
	Severity       string         `json:"severity"`
	CurrentValue   float64        `json:"current_value"`
	ThresholdValue float64        `json:"threshold_value"`
	Message        string         `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
	Tags           map[string]any `json:"tags,omitempty"`
	Resolved       bool           `json:"resolved"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// Summary holds fleet-wide alert statistics.
type Summary struct {
	TotalActive        int                `json:"total_active"`
	CriticalCount      int                `json:"critical_count"`
	WarningCount       int                `json:"warning_count"`
	ServersWithAlerts  int                `json:"servers_with_alerts"`
	RecentAlerts24h    int                `json:"recent_alerts_24h"`
	TopAlertingServers []ServerAlertCount `json:"top_alerting_servers"`
	MostCommonAlerts   []RuleAlertCount   `json:"most_common_alerts"`
}

// ServerAlertCount ranks one server by its active alerts.
type ServerAlertCount struct {
	ServerAlias    string `json:"server_alias"`
	CriticalAlerts int    `json:"critical_alerts"`
	WarningAlerts  int    `json:"warning_alerts"`
	TotalAlerts    int    `json:"total_alerts"`
}

// RuleAlertCount ranks one rule by how often it fired in the last day.
type RuleAlertCount struct {
	RuleName string `json:"rule_name"`
	Count    int    `json:"count"`
}
