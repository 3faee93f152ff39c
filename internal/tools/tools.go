// Package tools is the orchestration façade over the fleet: it combines the
// client pool, baseline store, health scorer, alert engine and capacity
// projector into the operations the protocol layer exposes.
package tools

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jmagar/glances-mcp/internal/alerting"
	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/capacity"
	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/glances"
	"github.com/jmagar/glances-mcp/internal/health"
	"github.com/jmagar/glances-mcp/internal/metricpath"
	"github.com/jmagar/glances-mcp/internal/metrics"
	"github.com/jmagar/glances-mcp/internal/otel"
)

// Service wires the fleet components behind tool-shaped operations. Fleet
// operations return per-server results with error annotations; only invalid
// parameters or an unknown server alias produce an operation-level error.
type Service struct {
	cfg       *config.Config
	pool      *glances.Pool
	store     *baseline.Store
	engine    *alerting.Engine
	projector *capacity.Projector
	scorer    *health.Scorer
	logger    *slog.Logger
	tracer    *otel.Tracer
}

// NewService creates the façade over the given components.
func NewService(cfg *config.Config, pool *glances.Pool, store *baseline.Store, engine *alerting.Engine, projector *capacity.Projector, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		pool:      pool,
		store:     store,
		engine:    engine,
		projector: projector,
		scorer:    health.NewScorer(nil, logger),
		logger:    logger,
	}
}

// SetTracer attaches an optional tracer; operations are untraced when unset.
func (s *Service) SetTracer(t *otel.Tracer) {
	s.tracer = t
}

// observe starts instrumentation for one operation. The returned finish
// function must be called with the operation's outcome.
func (s *Service) observe(ctx context.Context, tool string) (context.Context, func(error)) {
	start := time.Now()
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartToolSpan(ctx, tool)
	}
	return ctx, func(err error) {
		metrics.ObserveToolCall(tool, time.Since(start), err)
		if span != nil {
			span.End()
		}
	}
}

// clientsFor resolves the fan-out target: the named server, or every enabled
// server when the alias is empty.
func (s *Service) clientsFor(serverAlias string) ([]*glances.Client, error) {
	if serverAlias == "" {
		return s.pool.EnabledClients(), nil
	}
	c, err := s.pool.Client(serverAlias)
	if err != nil {
		return nil, err
	}
	return []*glances.Client{c}, nil
}

func num(m map[string]any, key string) float64 {
	f, _ := metricpath.AsFloat(m[key])
	return f
}

func str(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return fallback
}

func floats(m map[string]any, keys ...string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = num(m, k)
	}
	return out
}
