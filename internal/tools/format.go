package tools

import "fmt"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders a byte count as a human-readable size with one decimal.
func FormatBytes(v float64) string {
	if v == 0 {
		return "0 B"
	}
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[i])
}

// FormatPercentage renders a percentage with one decimal place.
func FormatPercentage(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FormatUptime renders an uptime in the coarsest two useful units.
func FormatUptime(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
	}
}
