package alerting

import (
	"time"

	"github.com/jmagar/glances-mcp/internal/config"
)

// InMaintenanceWindow reports whether now falls inside any suppressing
// maintenance window. Each window is checked in its own timezone, falling
// back to UTC when the zone name is empty or unknown. Days use 0=Monday
// through 6=Sunday and the time range is inclusive on both ends.
func InMaintenanceWindow(windows []config.MaintenanceWindow, now time.Time) bool {
	for i := range windows {
		if windows[i].Suppresses() && windowContains(&windows[i], now) {
			return true
		}
	}
	return false
}

func windowContains(w *config.MaintenanceWindow, now time.Time) bool {
	loc := time.UTC
	if w.Timezone != "" {
		if l, err := time.LoadLocation(w.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)

	// time.Weekday has Sunday=0; the window format uses Monday=0.
	weekday := (int(local.Weekday()) + 6) % 7
	if !containsInt(w.DaysOfWeek, weekday) {
		return false
	}

	clock := local.Format("15:04")
	start := w.StartTime
	if start == "" {
		start = "00:00"
	}
	end := w.EndTime
	if end == "" {
		end = "23:59"
	}
	return start <= clock && clock <= end
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
