package mockagent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jmagar/glances-mcp/internal/logging"
)

func startAgent(t *testing.T) *Agent {
	t.Helper()
	agent := New(Config{Addr: "127.0.0.1:0"}, logging.New("error", false))
	if err := agent.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		agent.Stop(ctx)
	})
	return agent
}

func TestVersionEndpoint(t *testing.T) {
	agent := startAgent(t)

	resp, err := http.Get(agent.URL() + "/api/3/version")
	if err != nil {
		t.Fatalf("GET version: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if body["version"] != apiVersion {
		t.Errorf("version = %q, want %q", body["version"], apiVersion)
	}
}

func TestMemoryEndpoint(t *testing.T) {
	agent := startAgent(t)

	resp, err := http.Get(agent.URL() + "/api/3/mem")
	if err != nil {
		t.Fatalf("GET mem: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode mem: %v", err)
	}
	total, ok := body["total"].(float64)
	if !ok || total <= 0 {
		t.Errorf("total = %v, want positive number", body["total"])
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		states []string
		want   string
	}{
		{[]string{"running"}, "R"},
		{[]string{"sleep"}, "S"},
		{[]string{"zombie"}, "Z"},
		{nil, "?"},
		{[]string{"daemon"}, "?"},
	}
	for _, tt := range tests {
		if got := statusCode(tt.states); got != tt.want {
			t.Errorf("statusCode(%v) = %q, want %q", tt.states, got, tt.want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	agent := startAgent(t)

	resp, err := http.Post(agent.URL()+"/api/3/cpu", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cpu: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
