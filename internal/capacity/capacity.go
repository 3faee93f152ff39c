// Package capacity projects resource utilization forward from observed
// trends and scores how adequate current provisioning will be.
package capacity

import "math"

// Risk levels, best to worst.
const (
	RiskMinimal  = "minimal"
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
	RiskUnknown  = "unknown"
)

// Resource kinds control how predicted values are clamped.
const (
	KindPercent = "percent"
	KindLoad    = "load"
)

// ResourcePrediction is a linear projection of one resource.
type ResourcePrediction struct {
	CurrentValue       float64 `json:"current_value"`
	PredictedValue     float64 `json:"predicted_value"`
	GrowthAmount       float64 `json:"growth_amount"`
	GrowthPercent      float64 `json:"growth_percent"`
	DailyChangePercent float64 `json:"daily_change_percent"`
	ProjectionDays     int     `json:"projection_days"`
	TrendConfidence    float64 `json:"trend_confidence,omitempty"`

	// Memory predictions also carry absolute sizes.
	PredictedMemoryGB float64 `json:"predicted_memory_gb,omitempty"`
	MemoryGrowthGB    float64 `json:"memory_growth_gb,omitempty"`
	TotalMemoryGB     float64 `json:"total_memory_gb,omitempty"`

	// Load predictions carry CPU-normalized values.
	CPUCount            float64 `json:"cpu_count,omitempty"`
	NormalizedCurrent   float64 `json:"normalized_current,omitempty"`
	NormalizedPredicted float64 `json:"normalized_predicted,omitempty"`
}

// PredictGrowth projects current forward by projectionDays using a weekly
// relative change rate. Percent resources clamp to [0, 100]; load clamps to
// non-negative.
func PredictGrowth(current, weeklyChangePercent float64, projectionDays int, kind string) ResourcePrediction {
	dailyChange := weeklyChangePercent / 7
	projectedChange := dailyChange * float64(projectionDays)
	predicted := current + current*projectedChange/100

	switch kind {
	case KindPercent:
		predicted = math.Max(0, math.Min(predicted, 100))
	case KindLoad:
		predicted = math.Max(0, predicted)
	}

	p := ResourcePrediction{
		CurrentValue:       current,
		PredictedValue:     predicted,
		GrowthAmount:       predicted - current,
		DailyChangePercent: dailyChange,
		ProjectionDays:     projectionDays,
	}
	if current > 0 {
		p.GrowthPercent = (predicted - current) / current * 100
	}
	return p
}

// DaysToThreshold estimates how many days a metric growing at a relative
// daily rate needs to reach threshold. The second return is false when the
// metric is not growing, already past the threshold, or would take longer
// than maxDays (ignored when maxDays <= 0).
func DaysToThreshold(current, threshold, dailyChangePercent float64, maxDays int) (int, bool) {
	if dailyChangePercent <= 0 || current >= threshold || current <= 0 {
		return 0, false
	}
	days := (threshold - current) / (current * dailyChangePercent / 100)
	if days <= 0 {
		return 0, false
	}
	if maxDays > 0 && days > float64(maxDays) {
		return 0, false
	}
	return int(days), true
}

// DaysToThresholdLinear estimates days to threshold for a metric growing by
// an absolute number of percentage points per day.
func DaysToThresholdLinear(current, threshold, pointsPerDay float64) (int, bool) {
	if pointsPerDay <= 0 || current >= threshold {
		return 0, false
	}
	days := (threshold - current) / pointsPerDay
	if days <= 0 {
		return 0, false
	}
	return int(days), true
}

// Adequacy scores how well a resource will hold up at its predicted level.
type Adequacy struct {
	AdequacyScore  int     `json:"adequacy_score"`
	RiskLevel      string  `json:"risk_level"`
	PredictedValue float64 `json:"predicted_value"`
	ProjectionDays int     `json:"projection_days"`
}

// AdequacyForPercent scores a percent-utilization resource.
func AdequacyForPercent(predicted float64, projectionDays int) Adequacy {
	a := Adequacy{PredictedValue: predicted, ProjectionDays: projectionDays}
	switch {
	case predicted >= 95:
		a.RiskLevel, a.AdequacyScore = RiskCritical, 0
	case predicted >= 85:
		a.RiskLevel, a.AdequacyScore = RiskHigh, 25
	case predicted >= 70:
		a.RiskLevel, a.AdequacyScore = RiskMedium, 50
	case predicted >= 50:
		a.RiskLevel, a.AdequacyScore = RiskLow, 75
	default:
		a.RiskLevel, a.AdequacyScore = RiskMinimal, 100
	}
	return a
}

// AdequacyForLoad scores a load-average resource normalized by CPU count.
func AdequacyForLoad(predicted, cpuCount float64, projectionDays int) Adequacy {
	if cpuCount < 1 {
		cpuCount = 1
	}
	normalized := predicted / cpuCount

	a := Adequacy{PredictedValue: predicted, ProjectionDays: projectionDays}
	switch {
	case normalized >= 3.0:
		a.RiskLevel, a.AdequacyScore = RiskCritical, 0
	case normalized >= 2.0:
		a.RiskLevel, a.AdequacyScore = RiskHigh, 25
	case normalized >= 1.5:
		a.RiskLevel, a.AdequacyScore = RiskMedium, 50
	case normalized >= 1.0:
		a.RiskLevel, a.AdequacyScore = RiskLow, 75
	default:
		a.RiskLevel, a.AdequacyScore = RiskMinimal, 100
	}
	return a
}

// OverallRisk returns the worst risk level present across adequacy scores.
func OverallRisk(scores map[string]Adequacy) string {
	if len(scores) == 0 {
		return RiskUnknown
	}
	worst := RiskMinimal
	rank := map[string]int{RiskMinimal: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3, RiskCritical: 4}
	for _, a := range scores {
		if rank[a.RiskLevel] > rank[worst] {
			worst = a.RiskLevel
		}
	}
	return worst
}
