// Package glances implements the REST client for Glances monitoring agents:
// per-server clients with retry and rate limiting, a fleet pool with
// concurrent health checks, and explicit capability probing.
package glances

import (
	"fmt"
	"time"
)

// Health status values reported by health checks.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
	StatusUnknown  = "unknown"
)

// HealthStatus describes the outcome of a server health probe.
type HealthStatus struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// ServerStatus is the full status record for one monitored server.
type ServerStatus struct {
	Alias                    string       `json:"alias"`
	Health                   HealthStatus `json:"health"`
	LastSuccessfulConnection *time.Time   `json:"last_successful_connection,omitempty"`
	ResponseTimeMs           float64      `json:"response_time_ms,omitempty"`
	GlancesVersion           string       `json:"glances_version,omitempty"`
	Capabilities             []string     `json:"capabilities,omitempty"`
}

// Capability tags discovered by probing optional endpoints.
const (
	CapabilityBasic      = "basic"
	CapabilityContainers = "docker"
	CapabilityProcesses  = "processes"
	CapabilityNetwork    = "network"
	CapabilityDiskIO     = "disk_io"
	CapabilityFilesystem = "filesystem"
	CapabilitySensors    = "sensors"
)

// APIError is a transient source error: the Glances API could not be reached
// or answered with a non-success status, after retries were exhausted.
type APIError struct {
	ServerAlias string
	Endpoint    string
	StatusCode  int
	Message     string
	Err         error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s: HTTP %d: %s", e.ServerAlias, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.ServerAlias, e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
