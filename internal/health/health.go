// Package health computes composite health scores for monitored servers and
// aggregates them into a fleet-wide summary.
package health

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jmagar/glances-mcp/internal/metricpath"
)

// Health statuses, worst to best.
const (
	StatusError    = "error"
	StatusCritical = "critical"
	StatusWarning  = "warning"
	StatusDegraded = "degraded"
	StatusHealthy  = "healthy"
)

// Weights maps component names to their share of the overall score.
type Weights map[string]float64

// DefaultWeights is the standard component weighting. Weights are
// renormalized over the components actually present.
var DefaultWeights = Weights{
	"cpu":     0.25,
	"memory":  0.25,
	"disk":    0.25,
	"network": 0.15,
	"load":    0.10,
}

// ComponentScore is one component's contribution to the health report.
type ComponentScore struct {
	Score   float64        `json:"score"`
	Details map[string]any `json:"details"`
	Issues  []string       `json:"issues,omitempty"`
}

// Report is the full health assessment of one server.
type Report struct {
	ServerAlias     string                    `json:"server_alias"`
	Timestamp       time.Time                 `json:"timestamp"`
	OverallScore    float64                   `json:"overall_score"`
	Status          string                    `json:"status"`
	ComponentScores map[string]ComponentScore `json:"component_scores"`
	CriticalIssues  []string                  `json:"critical_issues,omitempty"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

// Metrics holds the raw stats a health score is derived from. Nil fields
// mean the metric was unavailable and its component is skipped.
type Metrics struct {
	System  map[string]any
	CPU     map[string]any
	Memory  map[string]any
	Load    map[string]any
	Disks   []map[string]any
	Network []map[string]any
}

// Scorer computes health reports with a fixed component weighting.
type Scorer struct {
	weights Weights
	logger  *slog.Logger
}

// NewScorer creates a scorer. Nil weights fall back to DefaultWeights.
func NewScorer(weights Weights, logger *slog.Logger) *Scorer {
	if len(weights) == 0 {
		weights = DefaultWeights
	}
	return &Scorer{weights: weights, logger: logger}
}

// Score computes the health report for one server from its raw metrics.
func (s *Scorer) Score(serverAlias string, m Metrics) Report {
	report := Report{
		ServerAlias:     serverAlias,
		Timestamp:       time.Now(),
		ComponentScores: make(map[string]ComponentScore),
	}

	if m.CPU != nil {
		cs := cpuScore(m.CPU)
		report.ComponentScores["cpu"] = cs
		switch {
		case cs.Score < 20:
			report.CriticalIssues = append(report.CriticalIssues, "High CPU usage")
		case cs.Score < 50:
			report.Warnings = append(report.Warnings, "Elevated CPU usage")
		}
	}

	if m.Memory != nil {
		cs := memoryScore(m.Memory)
		report.ComponentScores["memory"] = cs
		switch {
		case cs.Score < 20:
			report.CriticalIssues = append(report.CriticalIssues, "High memory usage")
		case cs.Score < 50:
			report.Warnings = append(report.Warnings, "Elevated memory usage")
		}
	}

	if m.Disks != nil {
		cs := diskScore(m.Disks)
		report.ComponentScores["disk"] = cs
		switch {
		case cs.Score < 20:
			report.CriticalIssues = append(report.CriticalIssues, "High disk usage")
		case cs.Score < 50:
			report.Warnings = append(report.Warnings, "Elevated disk usage")
		}
	}

	if m.Network != nil {
		cs := networkScore(m.Network)
		report.ComponentScores["network"] = cs
		if cs.Score < 50 {
			report.Warnings = append(report.Warnings, "Network errors detected")
		}
	}

	if m.Load != nil && m.System != nil {
		cpuCount := num(m.System, "cpucount")
		if cpuCount < 1 {
			cpuCount = 1
		}
		cs := loadScore(m.Load, cpuCount)
		report.ComponentScores["load"] = cs
		switch {
		case cs.Score < 20:
			report.CriticalIssues = append(report.CriticalIssues, "High system load")
		case cs.Score < 50:
			report.Warnings = append(report.Warnings, "Elevated system load")
		}
	}

	if len(report.ComponentScores) == 0 {
		report.Status = StatusError
		report.CriticalIssues = append(report.CriticalIssues, "no metrics available")
		return report
	}

	report.OverallScore = weightedScore(report.ComponentScores, s.weights)
	report.Status = statusFor(report.OverallScore, report.CriticalIssues, report.Warnings)

	if s.logger != nil {
		s.logger.Debug("health score computed",
			"server_alias", serverAlias,
			"overall_score", report.OverallScore,
			"status", report.Status,
		)
	}
	return report
}

// num reads a numeric field, returning 0 when absent or non-numeric.
func num(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	f, _ := metricpath.AsFloat(v)
	return f
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func cpuScore(cpu map[string]any) ComponentScore {
	total := num(cpu, "total")
	user := num(cpu, "user")
	system := num(cpu, "system")
	iowait := num(cpu, "iowait")
	steal := num(cpu, "steal")

	base := math.Max(0, 100-total)

	var penalties float64
	if iowait > 20 {
		penalties += math.Min(iowait, 30)
	} else if iowait > 10 {
		penalties += iowait * 0.5
	}
	if steal > 5 {
		penalties += steal * 2
	}
	if system > 50 {
		penalties += (system - 50) * 0.5
	}

	var issues []string
	if total > 90 {
		issues = append(issues, fmt.Sprintf("Very high CPU usage (%.1f%%)", total))
	} else if total > 80 {
		issues = append(issues, fmt.Sprintf("High CPU usage (%.1f%%)", total))
	}
	if iowait > 20 {
		issues = append(issues, fmt.Sprintf("High I/O wait time (%.1f%%)", iowait))
	}
	if steal > 10 {
		issues = append(issues, fmt.Sprintf("High steal time (%.1f%%)", steal))
	}
	if system > 50 {
		issues = append(issues, fmt.Sprintf("High system CPU usage (%.1f%%)", system))
	}

	return ComponentScore{
		Score: math.Max(0, base-penalties),
		Details: map[string]any{
			"total_usage":       total,
			"user_usage":        user,
			"system_usage":      system,
			"iowait":            iowait,
			"steal":             steal,
			"penalties_applied": penalties,
		},
		Issues: issues,
	}
}

func memoryScore(mem map[string]any) ComponentScore {
	percent := num(mem, "percent")
	available := num(mem, "available")
	total := num(mem, "total")

	score := math.Max(0, 100-percent)

	availableGB := available / (1 << 30)
	if availableGB < 0.5 {
		score = math.Min(score, 20)
	} else if availableGB < 1.0 {
		score = math.Min(score, 40)
	}

	var issues []string
	if percent > 95 {
		issues = append(issues, fmt.Sprintf("Critical memory usage (%.1f%%)", percent))
	} else if percent > 85 {
		issues = append(issues, fmt.Sprintf("High memory usage (%.1f%%)", percent))
	}
	if availableGB < 0.5 {
		issues = append(issues, fmt.Sprintf("Very low available memory (%.1f GB)", availableGB))
	}

	return ComponentScore{
		Score: score,
		Details: map[string]any{
			"percent_used": percent,
			"available_gb": availableGB,
			"total_gb":     total / (1 << 30),
		},
		Issues: issues,
	}
}

// diskScore takes the worst filesystem as the base and blends in the root
// filesystem with a 0.7 weight so a full scratch disk cannot tank the score
// on its own.
func diskScore(disks []map[string]any) ComponentScore {
	if len(disks) == 0 {
		return ComponentScore{Score: 100, Details: map[string]any{}}
	}

	worst := 100.0
	worstUsage := 0.0
	var criticalDisks, warningDisks []string
	rootScore := -1.0

	for _, disk := range disks {
		mount := str(disk, "mnt_point")
		percent := num(disk, "percent")

		if score := math.Max(0, 100-percent); score < worst {
			worst = score
		}
		if percent > worstUsage {
			worstUsage = percent
		}
		if percent >= 95 {
			criticalDisks = append(criticalDisks, fmt.Sprintf("%s (%.1f%%)", mount, percent))
		} else if percent >= 85 {
			warningDisks = append(warningDisks, fmt.Sprintf("%s (%.1f%%)", mount, percent))
		}
		if mount == "/" {
			rootScore = math.Max(0, 100-percent)
		}
	}

	overall := worst
	if rootScore >= 0 {
		overall = rootScore*0.7 + worst*0.3
	}

	var issues []string
	if len(criticalDisks) > 0 {
		issues = append(issues, fmt.Sprintf("Critical disk usage: %s", strings.Join(criticalDisks, ", ")))
	}
	if len(warningDisks) > 0 {
		issues = append(issues, fmt.Sprintf("High disk usage: %s", strings.Join(warningDisks, ", ")))
	}

	return ComponentScore{
		Score: overall,
		Details: map[string]any{
			"disk_count":     len(disks),
			"critical_disks": criticalDisks,
			"warning_disks":  warningDisks,
			"worst_usage":    worstUsage,
		},
		Issues: issues,
	}
}

func networkScore(interfaces []map[string]any) ComponentScore {
	if len(interfaces) == 0 {
		return ComponentScore{Score: 100, Details: map[string]any{}}
	}

	var totalErrors, totalPackets float64
	var badInterfaces []string

	for _, iface := range interfaces {
		name := str(iface, "interface_name")
		errors := num(iface, "rx_errors") + num(iface, "tx_errors")
		packets := num(iface, "rx_packets") + num(iface, "tx_packets")

		totalErrors += errors
		totalPackets += packets

		if errors > 0 && packets > 0 {
			if rate := errors / packets * 100; rate > 0.1 {
				badInterfaces = append(badInterfaces, fmt.Sprintf("%s (%.2f%%)", name, rate))
			}
		}
	}

	var errorRate float64
	if totalPackets > 0 {
		errorRate = totalErrors / totalPackets * 100
	}

	var score float64
	switch {
	case errorRate == 0:
		score = 100
	case errorRate < 0.01:
		score = 95
	case errorRate < 0.1:
		score = 80
	case errorRate < 1.0:
		score = 60
	default:
		score = math.Max(0, 40-errorRate*5)
	}

	var issues []string
	if len(badInterfaces) > 0 {
		issues = append(issues, fmt.Sprintf("Network errors on: %s", strings.Join(badInterfaces, ", ")))
	}

	return ComponentScore{
		Score: score,
		Details: map[string]any{
			"interface_count":        len(interfaces),
			"total_errors":           totalErrors,
			"total_packets":          totalPackets,
			"error_rate_percent":     errorRate,
			"interfaces_with_errors": len(badInterfaces),
		},
		Issues: issues,
	}
}

// loadScore keys off the 5-minute load average normalized by CPU count.
func loadScore(load map[string]any, cpuCount float64) ComponentScore {
	min1 := num(load, "min1")
	min5 := num(load, "min5")
	min15 := num(load, "min15")

	primary := min5 / cpuCount

	var score float64
	switch {
	case primary <= 0.5:
		score = 100
	case primary <= 0.7:
		score = 90
	case primary <= 1.0:
		score = 80 - (primary-0.7)*100
	case primary <= 2.0:
		score = 50 - (primary-1.0)*25
	default:
		score = math.Max(0, 25-(primary-2.0)*12.5)
	}

	var issues []string
	if primary > 2.0 {
		issues = append(issues, fmt.Sprintf("Very high system load (%.2f)", primary))
	} else if primary > 1.0 {
		issues = append(issues, fmt.Sprintf("High system load (%.2f)", primary))
	}

	return ComponentScore{
		Score: score,
		Details: map[string]any{
			"load_1min":               min1,
			"load_5min":               min5,
			"load_15min":              min15,
			"cpu_count":               cpuCount,
			"primary_load_normalized": primary,
		},
		Issues: issues,
	}
}

func weightedScore(components map[string]ComponentScore, weights Weights) float64 {
	var total, totalWeight float64
	for name, weight := range weights {
		if cs, ok := components[name]; ok {
			total += cs.Score * weight
			totalWeight += weight
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return total / totalWeight
}

func statusFor(score float64, criticalIssues, warnings []string) string {
	switch {
	case len(criticalIssues) > 0 || score < 20:
		return StatusCritical
	case len(warnings) > 0 || score < 50:
		return StatusWarning
	case score < 80:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
