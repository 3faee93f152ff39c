package health

import (
	"context"
	"log/slog"

	"github.com/jmagar/glances-mcp/internal/glances"
)

// Collect gathers the metrics a health score needs from one server. Fetch
// failures leave the corresponding field nil so the component is skipped;
// the error return is non-nil only when every fetch failed.
func Collect(ctx context.Context, client *glances.Client, logger *slog.Logger) (Metrics, error) {
	var m Metrics
	var lastErr error
	failures := 0

	warn := func(endpoint string, err error) {
		failures++
		lastErr = err
		if logger != nil {
			logger.Warn("health metric fetch failed",
				"server_alias", client.Server().Alias,
				"endpoint", endpoint,
				"error", err,
			)
		}
	}

	if v, err := client.SystemInfo(ctx); err != nil {
		warn("system", err)
	} else {
		m.System = v
	}
	if v, err := client.CPUInfo(ctx); err != nil {
		warn("cpu", err)
	} else {
		m.CPU = v
	}
	if v, err := client.MemoryInfo(ctx); err != nil {
		warn("mem", err)
	} else {
		m.Memory = v
	}
	if v, err := client.LoadAverage(ctx); err != nil {
		warn("load", err)
	} else {
		m.Load = v
	}
	if v, err := client.DiskUsage(ctx); err != nil {
		warn("fs", err)
	} else {
		m.Disks = v
	}
	if v, err := client.NetworkInterfaces(ctx); err != nil {
		warn("network", err)
	} else {
		m.Network = v
	}

	if failures == 6 {
		return m, lastErr
	}
	return m, nil
}
