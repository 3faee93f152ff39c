// Package mockagent serves a Glances-compatible REST API backed by live host
// stats, for developing against glances-mcp without a real Glances install.
package mockagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const apiVersion = "3.4.0"

// Config controls the mock agent listener.
type Config struct {
	Addr string
}

// DefaultConfig returns a config bound to the standard Glances port.
func DefaultConfig() Config {
	return Config{Addr: ":61208"}
}

// Agent is a single-host Glances API stand-in.
type Agent struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
}

// New creates an agent with the given config.
func New(cfg Config, logger *slog.Logger) *Agent {
	return &Agent{config: cfg, logger: logger}
}

// Start begins serving in a background goroutine.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("mock agent already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/3/system", a.statHandler(collectSystem))
	mux.HandleFunc("/api/3/cpu", a.statHandler(collectCPU))
	mux.HandleFunc("/api/3/mem", a.statHandler(collectMemory))
	mux.HandleFunc("/api/3/load", a.statHandler(collectLoad))
	mux.HandleFunc("/api/3/uptime", a.statHandler(collectUptime))
	mux.HandleFunc("/api/3/fs", a.statHandler(collectFilesystems))
	mux.HandleFunc("/api/3/diskio", a.statHandler(collectDiskIO))
	mux.HandleFunc("/api/3/network", a.statHandler(collectNetwork))
	mux.HandleFunc("/api/3/connections", a.statHandler(collectConnections))
	mux.HandleFunc("/api/3/processlist", a.statHandler(collectProcesses))
	mux.HandleFunc("/api/3/sensors", a.statHandler(collectSensors))
	mux.HandleFunc("/api/3/version", a.statHandler(func(context.Context) (any, error) {
		return map[string]any{"version": apiVersion}, nil
	}))
	mux.HandleFunc("/api/3/all", a.statHandler(collectAll))

	listener, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("mock agent listen: %w", err)
	}
	a.listener = listener

	a.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.running = true

	go func() {
		if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error("mock agent failed", "error", err)
		}
	}()

	a.logger.Info("mock agent started", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the agent down, waiting for in-flight requests up to the
// context deadline.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false
	return a.server.Shutdown(ctx)
}

// Addr returns the bound address.
func (a *Agent) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.config.Addr
}

// URL returns the agent's base URL.
func (a *Agent) URL() string {
	return "http://" + a.Addr()
}

type collector func(ctx context.Context) (any, error)

func (a *Agent) statHandler(collect collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := collect(r.Context())
		if err != nil {
			a.logger.Warn("stat collection failed", "path", r.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			a.logger.Warn("stat encode failed", "path", r.URL.Path, "error", err)
		}
	}
}
