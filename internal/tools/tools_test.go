package tools

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/jmagar/glances-mcp/internal/alerting"
	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/capacity"
	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/glances"
	"github.com/jmagar/glances-mcp/internal/logging"
)

// glancesStub serves canned JSON bodies keyed by API path.
func glancesStub(bodies map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
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

// newTestService builds a full service over the given fleet config.
func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	logger := logging.New("error", false)
	cc := glances.ClientConfig{
		RetryAttempts:      1,
		RetryDelay:         5 * time.Millisecond,
		RateLimitPerMinute: 1000,
		HealthCheckTimeout: 2 * time.Second,
	}
	pool := glances.NewPool(cfg, cc, logger)
	store := baseline.NewStore(baseline.StoreConfig{}, logger)
	engine := alerting.NewEngine(pool, cfg, logger)
	projector := capacity.NewProjector(store, logger)
	return NewService(cfg, pool, store, engine, projector, logger)
}

// singleServerService stubs one Glances agent and wires it as "test".
func singleServerService(t *testing.T, bodies map[string]string) *Service {
	t.Helper()
	ts := glancesStub(bodies)
	t.Cleanup(ts.Close)
	cfg := &config.Config{Servers: []config.Server{serverFromURL(t, ts.URL, "test")}}
	return newTestService(t, cfg)
}

func TestClientsForUnknownAlias(t *testing.T) {
	svc := singleServerService(t, nil)
	if _, err := svc.clientsFor("nope"); err == nil {
		t.Error("clientsFor(nope) error = nil, want unknown alias error")
	}
	clients, err := svc.clientsFor("")
	if err != nil {
		t.Fatalf("clientsFor(\"\") error = %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("enabled client count = %d, want 1", len(clients))
	}
}
