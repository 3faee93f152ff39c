package glances

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/logging"
)

func testClientConfig() ClientConfig {
	return ClientConfig{
		RetryAttempts:      2,
		RetryDelay:         5 * time.Millisecond,
		RateLimitPerMinute: 1000,
		HealthCheckTimeout: 2 * time.Second,
	}
}

func serverFromURL(t *testing.T, rawURL, alias string) config.Server {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return config.Server{
		Alias:          alias,
		Host:           u.Hostname(),
		Port:           port,
		Protocol:       "http",
		TimeoutSeconds: 2,
	}
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	return NewClient(serverFromURL(t, ts.URL, "test"), testClientConfig(), logging.New("error", false))
}

func TestClientSystemInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/3/system" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Correlation-ID") == "" {
			t.Error("missing X-Correlation-ID header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hostname":"web-01","os_name":"Linux"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	info, err := client.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("SystemInfo() error = %v", err)
	}
	if got := info["hostname"]; got != "web-01" {
		t.Errorf("hostname = %v, want web-01", got)
	}
}

func TestClientBasicAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	srv := serverFromURL(t, ts.URL, "test")
	srv.Username = "admin"
	srv.Password = "secret"
	client := NewClient(srv, testClientConfig(), logging.New("error", false))

	if _, err := client.SystemInfo(context.Background()); err != nil {
		t.Fatalf("SystemInfo() with credentials error = %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"total":42.5}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	cpu, err := client.CPUInfo(context.Background())
	if err != nil {
		t.Fatalf("CPUInfo() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("call count = %d, want 3", got)
	}
	if got := cpu["total"]; got != 42.5 {
		t.Errorf("total = %v, want 42.5", got)
	}
}

func TestClientAuthFailureIsFinal(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	_, err := client.SystemInfo(context.Background())
	if err == nil {
		t.Fatal("SystemInfo() error = nil, want auth error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusUnauthorized)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("call count = %d, want 1 (no retries on 401)", got)
	}
}

func TestClientOptionalEndpointsAbsent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	ctx := context.Background()

	containers, err := client.Containers(ctx)
	if err != nil {
		t.Errorf("Containers() on absent endpoint error = %v, want nil", err)
	}
	if containers != nil {
		t.Errorf("Containers() = %v, want nil", containers)
	}

	sensors, err := client.Sensors(ctx)
	if err != nil {
		t.Errorf("Sensors() on absent endpoint error = %v, want nil", err)
	}
	if len(sensors) != 0 {
		t.Errorf("Sensors() = %v, want empty", sensors)
	}
}

func TestClientProbeCapabilities(t *testing.T) {
	available := map[string]bool{
		"/api/3/system":      true,
		"/api/3/processlist": true,
		"/api/3/fs":          true,
		"/api/3/network":     true,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !available[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	caps, err := client.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	want := map[string]bool{
		CapabilityBasic:      true,
		CapabilityProcesses:  true,
		CapabilityFilesystem: true,
		CapabilityNetwork:    true,
	}
	got := make(map[string]bool, len(caps))
	for _, c := range caps {
		got[c] = true
	}
	for capName := range want {
		if !got[capName] {
			t.Errorf("Probe() missing capability %q, got %v", capName, caps)
		}
	}
	if got[CapabilityContainers] || got[CapabilitySensors] {
		t.Errorf("Probe() reported unavailable capability, got %v", caps)
	}
}

func TestClientHealthCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/3/version":
			w.Write([]byte(`{"version":"3.4.0"}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	status := client.HealthCheck(context.Background())

	if status.Health.Status != StatusHealthy {
		t.Fatalf("Status = %q, want %q (message: %s)", status.Health.Status, StatusHealthy, status.Health.Message)
	}
	if status.GlancesVersion != "3.4.0" {
		t.Errorf("GlancesVersion = %q, want 3.4.0", status.GlancesVersion)
	}
	if status.LastSuccessfulConnection == nil {
		t.Error("LastSuccessfulConnection = nil, want timestamp")
	}
}

func TestClientHealthCheckUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := newTestClient(t, ts)
	status := client.HealthCheck(context.Background())

	if status.Health.Status != StatusCritical {
		t.Errorf("Status = %q, want %q", status.Health.Status, StatusCritical)
	}
	if status.Health.Message == "" {
		t.Error("Message is empty, want failure description")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.allow() {
			t.Fatalf("allow() call %d = false, want true", i+1)
		}
	}
	if limiter.allow() {
		t.Error("allow() over limit = true, want false")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)
	if !limiter.allow() {
		t.Fatal("first allow() = false, want true")
	}
	if limiter.allow() {
		t.Fatal("second allow() = true, want false")
	}
	time.Sleep(20 * time.Millisecond)
	if !limiter.allow() {
		t.Error("allow() after window expiry = false, want true")
	}
}
