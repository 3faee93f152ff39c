package health

import "math"

// FleetSummary aggregates health reports across the fleet.
type FleetSummary struct {
	TotalServers     int     `json:"total_servers"`
	HealthyServers   int     `json:"healthy_servers"`
	WarningServers   int     `json:"warning_servers"`
	CriticalServers  int     `json:"critical_servers"`
	ErrorServers     int     `json:"error_servers"`
	FleetStatus      string  `json:"fleet_status,omitempty"`
	AverageScore     float64 `json:"average_score"`
	HealthPercentage float64 `json:"health_percentage"`
}

// Summarize rolls per-server reports into a fleet status. Any critical or
// errored server makes the fleet critical; more than 30% warning servers
// makes it warning; at least 80% healthy servers makes it healthy; anything
// in between is degraded.
func Summarize(reports []Report) FleetSummary {
	summary := FleetSummary{TotalServers: len(reports)}
	if summary.TotalServers == 0 {
		return summary
	}

	var scoreSum float64
	var scored int
	for _, r := range reports {
		switch r.Status {
		case StatusHealthy:
			summary.HealthyServers++
		case StatusWarning:
			summary.WarningServers++
		case StatusCritical:
			summary.CriticalServers++
		case StatusError:
			summary.ErrorServers++
		}
		if r.Status != StatusError {
			scoreSum += r.OverallScore
			scored++
		}
	}

	if scored > 0 {
		summary.AverageScore = round2(scoreSum / float64(scored))
	}
	summary.HealthPercentage = round1(float64(summary.HealthyServers) / float64(summary.TotalServers) * 100)

	total := float64(summary.TotalServers)
	switch {
	case summary.CriticalServers > 0 || summary.ErrorServers > 0:
		summary.FleetStatus = StatusCritical
	case float64(summary.WarningServers) > total*0.3:
		summary.FleetStatus = StatusWarning
	case float64(summary.HealthyServers) >= total*0.8:
		summary.FleetStatus = StatusHealthy
	default:
		summary.FleetStatus = StatusDegraded
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
