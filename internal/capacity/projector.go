package capacity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/glances"
	"github.com/jmagar/glances-mcp/internal/metricpath"
)

// trendWindow is how far back trends look when projecting growth.
const trendWindow = 7 * 24 * time.Hour

// majorMounts are the filesystems disk predictions cover.
var majorMounts = map[string]bool{"/": true, "/home": true, "/var": true, "/opt": true}

// diskMonthlyGrowthPoints is the assumed filesystem growth in percentage
// points per month when no history is available.
const diskMonthlyGrowthPoints = 1.0

// Prediction parameter bounds and defaults.
const (
	DefaultProjectionDays  = 90
	DefaultConfidenceLevel = 0.80
	MaxProjectionDays      = 365
)

// Utilization is a server's current resource usage snapshot.
type Utilization struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	LoadAvg       float64 `json:"load_avg"`
	CPUCount      float64 `json:"cpu_count"`
}

// DiskPrediction projects one filesystem's usage forward.
type DiskPrediction struct {
	MountPoint            string  `json:"mount_point"`
	CurrentUsagePercent   float64 `json:"current_usage_percent"`
	PredictedUsagePercent float64 `json:"predicted_usage_percent"`
	SizeGB                float64 `json:"size_gb"`
	FreeGB                float64 `json:"free_gb"`
	GrowthRateMonthly     float64 `json:"growth_rate_monthly"`
	DaysTo90Percent       *int    `json:"days_to_90_percent,omitempty"`
	DaysTo95Percent       *int    `json:"days_to_95_percent,omitempty"`
}

// RiskSummary condenses a prediction into its headline risk.
type RiskSummary struct {
	OverallRiskLevel      string `json:"overall_risk_level"`
	ResourcesAtRisk       int    `json:"resources_at_risk"`
	ImmediateActionNeeded bool   `json:"immediate_action_needed"`
	PlanningHorizonDays   int    `json:"planning_horizon_days"`
}

// ServerPrediction is the full capacity forecast for one server.
type ServerPrediction struct {
	ServerAlias         string                        `json:"server_alias"`
	Timestamp           time.Time                     `json:"timestamp"`
	ProjectionDays      int                           `json:"projection_days"`
	ConfidenceLevel     float64                       `json:"confidence_level"`
	EndDate             string                        `json:"end_date"`
	CurrentUtilization  Utilization                   `json:"current_utilization"`
	ResourcePredictions map[string]ResourcePrediction `json:"resource_predictions"`
	DiskPredictions     []DiskPrediction              `json:"disk_predictions"`
	AdequacyScores      map[string]Adequacy           `json:"adequacy_scores"`
	Recommendations     []string                      `json:"recommendations"`
	Summary             RiskSummary                   `json:"summary"`
}

// RiskAssessment is the short-horizon risk verdict of a capacity analysis.
type RiskAssessment struct {
	Level                   string   `json:"level"`
	Recommendations         []string `json:"recommendations"`
	ImmediateActionRequired bool     `json:"immediate_action_required"`
}

// AnalysisUtilization is the utilization snapshot in a capacity analysis.
type AnalysisUtilization struct {
	CPUPercent            float64 `json:"cpu_percent"`
	MemoryPercent         float64 `json:"memory_percent"`
	DiskMaxPercent        float64 `json:"disk_max_percent"`
	LoadNormalizedPercent float64 `json:"load_normalized_percent"`
}

// TrendProjection carries days-to-threshold estimates for a growing metric.
type TrendProjection struct {
	Current             float64 `json:"current"`
	TrendDirection      string  `json:"trend_direction"`
	RecentChangePercent float64 `json:"recent_change_percent"`
	DaysTo80Percent     *int    `json:"days_to_80_percent,omitempty"`
	DaysTo90Percent     *int    `json:"days_to_90_percent,omitempty"`
}

// ResourceDetails describes the hardware behind an analysis.
type ResourceDetails struct {
	CPUCount         float64 `json:"cpu_count"`
	TotalMemoryGB    float64 `json:"total_memory_gb"`
	DiskCount        int     `json:"disk_count"`
	HighestDiskUsage struct {
		Percent    float64 `json:"percent"`
		MountPoint string  `json:"mount_point"`
	} `json:"highest_disk_usage"`
}

// Analysis is the capacity utilization assessment for one server.
type Analysis struct {
	ServerAlias        string                     `json:"server_alias"`
	Timestamp          time.Time                  `json:"timestamp"`
	CurrentUtilization AnalysisUtilization        `json:"current_utilization"`
	Projections        map[string]TrendProjection `json:"projections"`
	RiskAssessment     RiskAssessment             `json:"risk_assessment"`
	ResourceDetails    ResourceDetails            `json:"resource_details"`
}

// TrendSource supplies trend analysis from buffered history.
type TrendSource interface {
	Trend(serverAlias, metricPath string, window time.Duration) baseline.Trend
}

// Projector builds capacity forecasts from live metrics and trend history.
type Projector struct {
	trends TrendSource
	logger *slog.Logger
}

// NewProjector creates a projector over the given trend source.
func NewProjector(trends TrendSource, logger *slog.Logger) *Projector {
	return &Projector{trends: trends, logger: logger}
}

// ValidatePredictionParams bounds-checks prediction inputs, applying
// defaults for zero values.
func ValidatePredictionParams(projectionDays int, confidenceLevel float64) (int, float64, error) {
	if projectionDays == 0 {
		projectionDays = DefaultProjectionDays
	}
	if confidenceLevel == 0 {
		confidenceLevel = DefaultConfidenceLevel
	}
	if projectionDays < 1 || projectionDays > MaxProjectionDays {
		return 0, 0, fmt.Errorf("projection_days must be between 1 and %d", MaxProjectionDays)
	}
	if confidenceLevel < 0.5 || confidenceLevel > 0.99 {
		return 0, 0, fmt.Errorf("confidence_level must be between 0.5 and 0.99")
	}
	return projectionDays, confidenceLevel, nil
}

// Predict builds the full resource forecast for one server.
func (p *Projector) Predict(ctx context.Context, client *glances.Client, projectionDays int, confidenceLevel float64) (*ServerPrediction, error) {
	projectionDays, confidenceLevel, err := ValidatePredictionParams(projectionDays, confidenceLevel)
	if err != nil {
		return nil, err
	}

	alias := client.Server().Alias
	cpu, err := client.CPUInfo(ctx)
	if err != nil {
		return nil, err
	}
	mem, err := client.MemoryInfo(ctx)
	if err != nil {
		return nil, err
	}
	disks, err := client.DiskUsage(ctx)
	if err != nil {
		return nil, err
	}
	load, err := client.LoadAverage(ctx)
	if err != nil {
		return nil, err
	}
	system, err := client.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	util := Utilization{
		CPUPercent:    fnum(cpu, "total"),
		MemoryPercent: fnum(mem, "percent"),
		MemoryTotalGB: fnum(mem, "total") / (1 << 30),
		MemoryUsedGB:  fnum(mem, "used") / (1 << 30),
		LoadAvg:       fnum(load, "min5"),
		CPUCount:      fnum(system, "cpucount"),
	}
	if util.CPUCount < 1 {
		util.CPUCount = 1
	}

	predictions := make(map[string]ResourcePrediction)

	if trend := p.trends.Trend(alias, "cpu.total", trendWindow); trend.Confidence >= confidenceLevel {
		pred := PredictGrowth(util.CPUPercent, trend.ChangePercent, projectionDays, KindPercent)
		pred.TrendConfidence = trend.Confidence
		predictions["cpu"] = pred
	}

	if trend := p.trends.Trend(alias, "mem.percent", trendWindow); trend.Confidence >= confidenceLevel {
		pred := PredictGrowth(util.MemoryPercent, trend.ChangePercent, projectionDays, KindPercent)
		pred.TrendConfidence = trend.Confidence
		pred.TotalMemoryGB = util.MemoryTotalGB
		pred.PredictedMemoryGB = pred.PredictedValue / 100 * util.MemoryTotalGB
		pred.MemoryGrowthGB = pred.PredictedMemoryGB - util.MemoryUsedGB
		predictions["memory"] = pred
	}

	if trend := p.trends.Trend(alias, "load.min5", trendWindow); trend.Confidence >= confidenceLevel {
		pred := PredictGrowth(util.LoadAvg, trend.ChangePercent, projectionDays, KindLoad)
		pred.TrendConfidence = trend.Confidence
		pred.CPUCount = util.CPUCount
		pred.NormalizedCurrent = util.LoadAvg / util.CPUCount
		pred.NormalizedPredicted = pred.PredictedValue / util.CPUCount
		predictions["load"] = pred
	}

	diskPredictions := predictDisks(disks, projectionDays)
	adequacy := adequacyScores(predictions, projectionDays)

	result := &ServerPrediction{
		ServerAlias:         alias,
		Timestamp:           time.Now(),
		ProjectionDays:      projectionDays,
		ConfidenceLevel:     confidenceLevel,
		EndDate:             time.Now().AddDate(0, 0, projectionDays).Format("2006-01-02"),
		CurrentUtilization:  util,
		ResourcePredictions: predictions,
		DiskPredictions:     diskPredictions,
		AdequacyScores:      adequacy,
		Recommendations:     predictionRecommendations(predictions, diskPredictions, projectionDays),
		Summary:             summarizeRisk(adequacy, projectionDays),
	}
	return result, nil
}

// Analyze builds the short-horizon capacity analysis for one server.
func (p *Projector) Analyze(ctx context.Context, client *glances.Client, projectionDays int) (*Analysis, error) {
	if projectionDays <= 0 {
		projectionDays = 30
	}

	alias := client.Server().Alias
	cpu, err := client.CPUInfo(ctx)
	if err != nil {
		return nil, err
	}
	mem, err := client.MemoryInfo(ctx)
	if err != nil {
		return nil, err
	}
	disks, err := client.DiskUsage(ctx)
	if err != nil {
		return nil, err
	}
	load, err := client.LoadAverage(ctx)
	if err != nil {
		return nil, err
	}
	system, err := client.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	cpuCount := fnum(system, "cpucount")
	if cpuCount < 1 {
		cpuCount = 1
	}

	var maxDisk float64
	maxDiskMount := "unknown"
	for _, disk := range disks {
		if percent := fnum(disk, "percent"); percent >= maxDisk {
			maxDisk = percent
			maxDiskMount = fstr(disk, "mnt_point")
		}
	}
	if len(disks) == 0 {
		maxDiskMount = "unknown"
	}

	util := AnalysisUtilization{
		CPUPercent:            fnum(cpu, "total"),
		MemoryPercent:         fnum(mem, "percent"),
		DiskMaxPercent:        maxDisk,
		LoadNormalizedPercent: minf(fnum(load, "min5")/cpuCount*100, 200),
	}

	projections := make(map[string]TrendProjection)
	if trend := p.trends.Trend(alias, "cpu.total", trendWindow); trend.Direction == baseline.TrendIncreasing {
		projections["cpu"] = trendProjection(util.CPUPercent, trend, projectionDays)
	}
	if trend := p.trends.Trend(alias, "mem.percent", trendWindow); trend.Direction == baseline.TrendIncreasing {
		projections["memory"] = trendProjection(util.MemoryPercent, trend, projectionDays)
	}

	risk := assessAnalysisRisk(util)

	result := &Analysis{
		ServerAlias:        alias,
		Timestamp:          time.Now(),
		CurrentUtilization: util,
		Projections:        projections,
		RiskAssessment:     risk,
	}
	result.ResourceDetails.CPUCount = cpuCount
	result.ResourceDetails.TotalMemoryGB = fnum(mem, "total") / (1 << 30)
	result.ResourceDetails.DiskCount = len(disks)
	result.ResourceDetails.HighestDiskUsage.Percent = maxDisk
	result.ResourceDetails.HighestDiskUsage.MountPoint = maxDiskMount
	return result, nil
}

func trendProjection(current float64, trend baseline.Trend, projectionDays int) TrendProjection {
	tp := TrendProjection{
		Current:             current,
		TrendDirection:      trend.Direction,
		RecentChangePercent: trend.ChangePercent,
	}
	daily := trend.ChangePercent / 7
	if d, ok := DaysToThreshold(current, 80, daily, projectionDays); ok {
		tp.DaysTo80Percent = &d
	}
	if d, ok := DaysToThreshold(current, 90, daily, projectionDays); ok {
		tp.DaysTo90Percent = &d
	}
	return tp
}

func assessAnalysisRisk(util AnalysisUtilization) RiskAssessment {
	var recommendations []string
	level := RiskLow
	raise := func(to string) {
		if to == RiskHigh || level == RiskLow {
			level = to
		}
	}

	if util.CPUPercent > 80 {
		recommendations = append(recommendations, "CPU utilization is high - consider CPU upgrade")
		raise(RiskHigh)
	} else if util.CPUPercent > 60 {
		recommendations = append(recommendations, "CPU utilization is elevated - monitor closely")
		raise(RiskMedium)
	}

	if util.MemoryPercent > 85 {
		recommendations = append(recommendations, "Memory utilization is high - consider RAM upgrade")
		raise(RiskHigh)
	} else if util.MemoryPercent > 70 {
		recommendations = append(recommendations, "Memory utilization is elevated - monitor closely")
		raise(RiskMedium)
	}

	if util.DiskMaxPercent > 90 {
		recommendations = append(recommendations, "Disk space is critically low - immediate action required")
		raise(RiskHigh)
	} else if util.DiskMaxPercent > 80 {
		recommendations = append(recommendations, "Disk space is running low - plan for expansion")
		raise(RiskMedium)
	}

	if util.LoadNormalizedPercent > 150 {
		recommendations = append(recommendations, "System load is very high - performance may be degraded")
		raise(RiskHigh)
	}

	return RiskAssessment{
		Level:                   level,
		Recommendations:         recommendations,
		ImmediateActionRequired: level == RiskHigh,
	}
}

func predictDisks(disks []map[string]any, projectionDays int) []DiskPrediction {
	var out []DiskPrediction
	for _, disk := range disks {
		mount := fstr(disk, "mnt_point")
		if !majorMounts[mount] {
			continue
		}
		usage := fnum(disk, "percent")
		if usage <= 10 {
			continue
		}

		pointsPerDay := diskMonthlyGrowthPoints / 30
		dp := DiskPrediction{
			MountPoint:            mount,
			CurrentUsagePercent:   usage,
			PredictedUsagePercent: minf(usage+pointsPerDay*float64(projectionDays), 100),
			SizeGB:                fnum(disk, "size") / (1 << 30),
			FreeGB:                fnum(disk, "free") / (1 << 30),
			GrowthRateMonthly:     diskMonthlyGrowthPoints,
		}
		if d, ok := DaysToThresholdLinear(usage, 90, pointsPerDay); ok {
			dp.DaysTo90Percent = &d
		}
		if d, ok := DaysToThresholdLinear(usage, 95, pointsPerDay); ok {
			dp.DaysTo95Percent = &d
		}
		out = append(out, dp)
	}
	return out
}

func adequacyScores(predictions map[string]ResourcePrediction, projectionDays int) map[string]Adequacy {
	scores := make(map[string]Adequacy, len(predictions))
	for resource, pred := range predictions {
		switch resource {
		case "cpu", "memory":
			scores[resource] = AdequacyForPercent(pred.PredictedValue, projectionDays)
		case "load":
			scores[resource] = AdequacyForLoad(pred.PredictedValue, pred.CPUCount, projectionDays)
		default:
			scores[resource] = Adequacy{AdequacyScore: 50, RiskLevel: RiskUnknown, PredictedValue: pred.PredictedValue, ProjectionDays: projectionDays}
		}
	}
	return scores
}

func predictionRecommendations(predictions map[string]ResourcePrediction, disks []DiskPrediction, projectionDays int) []string {
	var out []string

	if cpu, ok := predictions["cpu"]; ok {
		if cpu.PredictedValue > 90 {
			out = append(out, fmt.Sprintf(
				"Critical: CPU utilization predicted to reach %.1f%% in %d days. Plan CPU upgrade immediately.",
				cpu.PredictedValue, projectionDays))
		} else if cpu.PredictedValue > 80 {
			out = append(out, fmt.Sprintf(
				"Warning: CPU utilization predicted to reach %.1f%% in %d days. Consider CPU upgrade planning.",
				cpu.PredictedValue, projectionDays))
		}
	}

	if mem, ok := predictions["memory"]; ok {
		if mem.PredictedValue > 90 {
			out = append(out, fmt.Sprintf(
				"Critical: Memory utilization predicted to reach %.1f%% (%.1f GB additional) in %d days. Plan memory upgrade.",
				mem.PredictedValue, mem.MemoryGrowthGB, projectionDays))
		} else if mem.PredictedValue > 80 {
			out = append(out, fmt.Sprintf(
				"Warning: Memory utilization predicted to reach %.1f%% in %d days. Monitor closely and plan for potential upgrade.",
				mem.PredictedValue, projectionDays))
		}
	}

	if load, ok := predictions["load"]; ok {
		if load.NormalizedPredicted > 2.0 {
			out = append(out, fmt.Sprintf(
				"Critical: System load predicted to reach %.1f (%.1f per CPU) in %d days. Performance will be severely impacted.",
				load.PredictedValue, load.NormalizedPredicted, projectionDays))
		} else if load.NormalizedPredicted > 1.5 {
			out = append(out, fmt.Sprintf(
				"Warning: System load predicted to reach %.1f in %d days. Monitor for performance impact.",
				load.PredictedValue, projectionDays))
		}
	}

	for _, disk := range disks {
		if disk.DaysTo95Percent != nil && *disk.DaysTo95Percent <= projectionDays {
			out = append(out, fmt.Sprintf(
				"Critical: %s predicted to reach 95%% capacity in %d days. Plan disk expansion immediately.",
				disk.MountPoint, *disk.DaysTo95Percent))
		} else if disk.DaysTo90Percent != nil && *disk.DaysTo90Percent <= projectionDays {
			out = append(out, fmt.Sprintf(
				"Warning: %s predicted to reach 90%% capacity in %d days. Plan disk expansion.",
				disk.MountPoint, *disk.DaysTo90Percent))
		}
	}

	if len(out) == 0 {
		out = append(out, "No immediate capacity concerns identified for the projection period.")
	}
	return out
}

func summarizeRisk(adequacy map[string]Adequacy, projectionDays int) RiskSummary {
	s := RiskSummary{
		OverallRiskLevel:    OverallRisk(adequacy),
		PlanningHorizonDays: projectionDays,
	}
	for _, a := range adequacy {
		if a.RiskLevel == RiskHigh || a.RiskLevel == RiskCritical {
			s.ResourcesAtRisk++
		}
		if a.RiskLevel == RiskCritical {
			s.ImmediateActionNeeded = true
		}
	}
	return s
}

func fnum(m map[string]any, key string) float64 {
	f, _ := metricpath.AsFloat(m[key])
	return f
}

func fstr(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
