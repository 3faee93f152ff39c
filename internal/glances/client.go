package glances

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/metrics"
	"github.com/jmagar/glances-mcp/internal/otel"
)

const (
	apiPrefix            = "/api/3/"
	maxResponseBodyBytes = 4 * 1024 * 1024
)

// ClientConfig controls retry and rate-limit behaviour shared by all clients.
type ClientConfig struct {
	// RetryAttempts is the number of additional attempts after the first
	// failure. Default: 3.
	RetryAttempts int

	// RetryDelay is the fixed delay between attempts. Default: 5s.
	RetryDelay time.Duration

	// RateLimitPerMinute bounds calls per server. Default: 60.
	RateLimitPerMinute int

	// HealthCheckTimeout bounds a single health probe. Default: 10s.
	HealthCheckTimeout time.Duration
}

// DefaultClientConfig returns a ClientConfig with default values.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RetryAttempts:      3,
		RetryDelay:         5 * time.Second,
		RateLimitPerMinute: 60,
		HealthCheckTimeout: 10 * time.Second,
	}
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c ClientConfig) WithDefaults() ClientConfig {
	defaults := DefaultClientConfig()
	result := c
	if result.RetryAttempts < 0 {
		result.RetryAttempts = defaults.RetryAttempts
	}
	if result.RetryDelay <= 0 {
		result.RetryDelay = defaults.RetryDelay
	}
	if result.RateLimitPerMinute <= 0 {
		result.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if result.HealthCheckTimeout <= 0 {
		result.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	return result
}

// Client talks to a single Glances agent.
type Client struct {
	server     config.Server
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rateLimiter
	tracer     *otel.Tracer

	mu            sync.Mutex
	cachedVersion string
	cachedCaps    []string
	lastSuccess   time.Time
}

// NewClient creates a client for one configured server.
func NewClient(server config.Server, cc ClientConfig, logger *slog.Logger) *Client {
	cc = cc.WithDefaults()
	return &Client{
		server: server,
		config: cc,
		httpClient: &http.Client{
			Timeout: time.Duration(server.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("server_alias", server.Alias),
		limiter: newRateLimiter(cc.RateLimitPerMinute, time.Minute),
	}
}

// SetTracer attaches an optional tracer; fetches are untraced when unset.
func (c *Client) SetTracer(t *otel.Tracer) {
	c.tracer = t
}

// Server returns the configuration this client was built from.
func (c *Client) Server() config.Server {
	return c.server
}

// get fetches one endpoint and decodes the JSON body. All failures are
// returned as *APIError after the configured retries are exhausted.
func (c *Client) get(ctx context.Context, endpoint string) (any, error) {
	if !c.limiter.allow() {
		return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: endpoint, Message: "rate limit exceeded"}
	}

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.StartFetchSpan(ctx, c.server.Alias, endpoint)
		defer span.End()
	}

	correlationID := uuid.NewString()[:8]
	url := c.server.BaseURL() + apiPrefix + endpoint
	start := time.Now()

	var lastErr *APIError
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: endpoint, Message: "cancelled", Err: ctx.Err()}
			case <-time.After(c.config.RetryDelay):
			}
		}

		body, apiErr := c.doRequest(ctx, url, correlationID)
		if apiErr == nil {
			elapsed := time.Since(start)
			metrics.ObserveSourceFetch(c.server.Alias, endpoint, elapsed, nil)

			c.mu.Lock()
			c.lastSuccess = time.Now()
			c.mu.Unlock()

			c.logger.Debug("glances request succeeded",
				"endpoint", endpoint,
				"correlation_id", correlationID,
				"response_time_ms", elapsed.Milliseconds(),
				"attempt", attempt+1,
			)
			return body, nil
		}

		lastErr = apiErr
		if !apiErr.retryable() {
			break
		}
	}

	metrics.ObserveSourceFetch(c.server.Alias, endpoint, time.Since(start), lastErr)
	c.logger.Warn("glances request failed",
		"endpoint", endpoint,
		"correlation_id", correlationID,
		"error", lastErr.Error(),
	)
	return nil, lastErr
}

// retryable reports whether the failure is worth another attempt.
// Auth and not-found failures are final; network and 5xx failures are not.
func (e *APIError) retryable() bool {
	switch e.StatusCode {
	case 0:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return e.StatusCode >= 500
	}
}

func (c *Client) doRequest(ctx context.Context, url, correlationID string) (any, *APIError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: url, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)
	if c.server.Username != "" {
		req.SetBasicAuth(c.server.Username, c.server.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: url, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: url, Message: err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			msg = "authentication failed"
		case http.StatusNotFound:
			msg = "endpoint not found"
		}
		return nil, &APIError{
			ServerAlias: c.server.Alias,
			Endpoint:    url,
			StatusCode:  resp.StatusCode,
			Message:     msg,
		}
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &APIError{ServerAlias: c.server.Alias, Endpoint: url, Message: "invalid JSON body", Err: err}
	}
	return body, nil
}

func (c *Client) getObject(ctx context.Context, endpoint string) (map[string]any, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return obj, nil
}

func (c *Client) getList(ctx context.Context, endpoint string) ([]map[string]any, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	raw, ok := body.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// SystemInfo returns host identification (hostname, OS, cpucount, ...).
func (c *Client) SystemInfo(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "system")
}

// CPUInfo returns CPU usage statistics.
func (c *Client) CPUInfo(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "cpu")
}

// MemoryInfo returns memory usage statistics.
func (c *Client) MemoryInfo(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "mem")
}

// LoadAverage returns 1/5/15-minute load averages.
func (c *Client) LoadAverage(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "load")
}

// Uptime returns system uptime.
func (c *Client) Uptime(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "uptime")
}

// DiskUsage returns per-filesystem usage.
func (c *Client) DiskUsage(ctx context.Context) ([]map[string]any, error) {
	return c.getList(ctx, "fs")
}

// DiskIO returns per-device I/O statistics.
func (c *Client) DiskIO(ctx context.Context) ([]map[string]any, error) {
	return c.getList(ctx, "diskio")
}

// NetworkInterfaces returns per-interface traffic and error counters.
func (c *Client) NetworkInterfaces(ctx context.Context) ([]map[string]any, error) {
	return c.getList(ctx, "network")
}

// Connections returns network connections; the endpoint is optional and an
// unavailable endpoint yields an empty list.
func (c *Client) Connections(ctx context.Context) ([]map[string]any, error) {
	list, err := c.getList(ctx, "connections")
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

// Processes returns the process list.
func (c *Client) Processes(ctx context.Context) ([]map[string]any, error) {
	return c.getList(ctx, "processlist")
}

// Containers returns container stats; absent container support yields nil.
func (c *Client) Containers(ctx context.Context) ([]map[string]any, error) {
	list, err := c.getList(ctx, "containers")
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

// Sensors returns temperature and other sensor readings when available.
func (c *Client) Sensors(ctx context.Context) (map[string]any, error) {
	obj, err := c.getObject(ctx, "sensors")
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return obj, nil
}

// AllStats returns the full stats document used for rule evaluation.
func (c *Client) AllStats(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, "all")
}

// Version returns the agent version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	obj, err := c.getObject(ctx, "version")
	if err != nil {
		return "", err
	}
	if v, ok := obj["version"].(string); ok {
		return v, nil
	}
	return "unknown", nil
}

// Probe tests optional endpoints and returns the capability tags the agent
// supports. Unavailability is expected data here, not an error: only a
// fully unreachable agent returns a non-nil error.
func (c *Client) Probe(ctx context.Context) ([]string, error) {
	if _, err := c.getObject(ctx, "system"); err != nil {
		return nil, err
	}

	capabilities := []string{CapabilityBasic}
	probes := []struct {
		endpoint   string
		capability string
	}{
		{"containers", CapabilityContainers},
		{"processlist", CapabilityProcesses},
		{"network", CapabilityNetwork},
		{"diskio", CapabilityDiskIO},
		{"fs", CapabilityFilesystem},
		{"sensors", CapabilitySensors},
	}

	for _, p := range probes {
		if _, err := c.get(ctx, p.endpoint); err == nil {
			capabilities = append(capabilities, p.capability)
		}
	}

	c.mu.Lock()
	c.cachedCaps = capabilities
	c.mu.Unlock()

	return capabilities, nil
}

// HealthCheck probes the server and returns its status. The probe uses a
// tighter timeout than regular fetches.
func (c *Client) HealthCheck(ctx context.Context) ServerStatus {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	_, err := c.getObject(ctx, "system")
	responseTime := float64(time.Since(start).Milliseconds())

	c.mu.Lock()
	version := c.cachedVersion
	caps := c.cachedCaps
	var lastSuccess *time.Time
	if !c.lastSuccess.IsZero() {
		t := c.lastSuccess
		lastSuccess = &t
	}
	c.mu.Unlock()

	if err != nil {
		status := ServerStatus{
			Alias: c.server.Alias,
			Health: HealthStatus{
				Status:    StatusCritical,
				Message:   fmt.Sprintf("health check failed: %v", err),
				Timestamp: time.Now(),
			},
			LastSuccessfulConnection: lastSuccess,
			GlancesVersion:           version,
			Capabilities:             caps,
		}
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode != 0 {
			status.Health.Details = map[string]any{"status_code": apiErr.StatusCode}
		}
		return status
	}

	if version == "" {
		if v, verr := c.Version(ctx); verr == nil {
			version = v
			c.mu.Lock()
			c.cachedVersion = v
			c.mu.Unlock()
		} else {
			version = "unknown"
		}
	}
	if len(caps) == 0 {
		if probed, perr := c.Probe(ctx); perr == nil {
			caps = probed
		} else {
			caps = []string{CapabilityBasic}
		}
	}

	now := time.Now()
	return ServerStatus{
		Alias: c.server.Alias,
		Health: HealthStatus{
			Status:    StatusHealthy,
			Message:   "server is responding normally",
			Timestamp: now,
		},
		LastSuccessfulConnection: &now,
		ResponseTimeMs:           responseTime,
		GlancesVersion:           version,
		Capabilities:             caps,
	}
}

// rateLimiter is a sliding-window call limiter.
type rateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time
}

func newRateLimiter(maxCalls int, window time.Duration) *rateLimiter {
	return &rateLimiter{maxCalls: maxCalls, window: window}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	kept := r.calls[:0]
	for _, t := range r.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.calls = kept

	if len(r.calls) >= r.maxCalls {
		return false
	}
	r.calls = append(r.calls, time.Now())
	return true
}
