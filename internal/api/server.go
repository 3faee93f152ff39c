// Package api exposes the façade operations over HTTP, alongside the
// service's own health and metrics endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/tools"
)

// Server serves the monitoring API on one listener.
type Server struct {
	svc    *tools.Service
	store  *baseline.Store
	logger *slog.Logger
	gather prometheus.Gatherer

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
	addr     string
}

// NewServer creates an API server over the façade. The gatherer backs the
// /metrics endpoint; pass prometheus.DefaultGatherer unless testing.
func NewServer(addr string, svc *tools.Service, store *baseline.Store, gather prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		svc:    svc,
		store:  store,
		logger: logger,
		gather: gather,
		addr:   addr,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("api server already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/servers", s.handleListServers)
	mux.HandleFunc("/api/v1/servers/", s.routeServers)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/overview", s.handleOverview)
	mux.HandleFunc("/api/v1/metrics", s.handleDetailedMetrics)
	mux.HandleFunc("/api/v1/disks", s.handleDisks)
	mux.HandleFunc("/api/v1/network", s.handleNetwork)
	mux.HandleFunc("/api/v1/processes", s.handleProcesses)
	mux.HandleFunc("/api/v1/containers", s.handleContainers)
	mux.HandleFunc("/api/v1/health", s.handleHealthScore)
	mux.HandleFunc("/api/v1/comparison", s.handleComparison)
	mux.HandleFunc("/api/v1/anomalies", s.handleAnomalies)
	mux.HandleFunc("/api/v1/capacity", s.handleCapacity)
	mux.HandleFunc("/api/v1/predictions", s.handlePredictions)
	mux.HandleFunc("/api/v1/alerts/check", s.handleAlertCheck)
	mux.HandleFunc("/api/v1/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("/api/v1/alerts/history", s.handleAlertHistory)
	mux.HandleFunc("/api/v1/alerts/summary", s.handleAlertSummary)
	mux.HandleFunc("/api/v1/baselines/", s.handleBaseline)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server failed", "error", err)
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, which differs from the configured one when
// listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// routeServers handles /api/v1/servers/{alias} lookups.
func (s *Server) routeServers(w http.ResponseWriter, r *http.Request) {
	alias := strings.TrimPrefix(r.URL.Path, "/api/v1/servers/")
	if alias == "" || strings.Contains(alias, "/") {
		writeError(w, http.StatusNotFound, "not_found", "endpoint not found")
		return
	}
	s.handleServerStatus(w, r, alias)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the façade is wired; configuration load
// failures prevent the process from starting at all.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "service not wired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
