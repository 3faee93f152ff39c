package glances

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/otel"
)

// ErrUnknownServer is returned when an alias matches no configured server.
var ErrUnknownServer = errors.New("unknown server alias")

const (
	defaultHealthCacheTTL  = 60 * time.Second
	defaultHealthCheckFans = 8
)

// Pool holds one client per configured server and fans out fleet-wide
// operations with bounded concurrency.
type Pool struct {
	clients map[string]*Client
	order   []string
	logger  *slog.Logger
	sem     *semaphore.Weighted

	mu          sync.Mutex
	healthCache map[string]cachedHealth
	cacheTTL    time.Duration
}

type cachedHealth struct {
	status  ServerStatus
	fetched time.Time
}

// NewPool builds clients for every server in the config, including disabled
// ones. Disabled servers are excluded from fan-out operations but remain
// addressable by alias.
func NewPool(cfg *config.Config, cc ClientConfig, logger *slog.Logger) *Pool {
	p := &Pool{
		clients:     make(map[string]*Client, len(cfg.Servers)),
		order:       make([]string, 0, len(cfg.Servers)),
		logger:      logger,
		sem:         semaphore.NewWeighted(defaultHealthCheckFans),
		healthCache: make(map[string]cachedHealth),
		cacheTTL:    defaultHealthCacheTTL,
	}
	for _, srv := range cfg.Servers {
		p.clients[srv.Alias] = NewClient(srv, cc, logger)
		p.order = append(p.order, srv.Alias)
	}
	return p
}

// SetTracer attaches a tracer to every client in the pool.
func (p *Pool) SetTracer(t *otel.Tracer) {
	for _, c := range p.clients {
		c.SetTracer(t)
	}
}

// Client returns the client for alias, or an error wrapping ErrUnknownServer.
func (p *Pool) Client(alias string) (*Client, error) {
	c, ok := p.clients[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, alias)
	}
	return c, nil
}

// EnabledClients returns clients for enabled servers in configuration order.
func (p *Pool) EnabledClients() []*Client {
	out := make([]*Client, 0, len(p.order))
	for _, alias := range p.order {
		c := p.clients[alias]
		srv := c.Server()
		if srv.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// Aliases returns all configured aliases in configuration order.
func (p *Pool) Aliases() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// HealthCheck returns the status of one server, served from the cache when a
// probe ran within the cache TTL.
func (p *Pool) HealthCheck(ctx context.Context, alias string) (ServerStatus, error) {
	c, err := p.Client(alias)
	if err != nil {
		return ServerStatus{}, err
	}

	p.mu.Lock()
	if cached, ok := p.healthCache[alias]; ok && time.Since(cached.fetched) < p.cacheTTL {
		p.mu.Unlock()
		return cached.status, nil
	}
	p.mu.Unlock()

	status := c.HealthCheck(ctx)

	p.mu.Lock()
	p.healthCache[alias] = cachedHealth{status: status, fetched: time.Now()}
	p.mu.Unlock()

	return status, nil
}

// HealthCheckAll probes every enabled server concurrently and returns the
// statuses sorted by alias. Per-server failures become critical statuses
// rather than errors; only context cancellation aborts the pass.
func (p *Pool) HealthCheckAll(ctx context.Context) ([]ServerStatus, error) {
	clients := p.EnabledClients()
	results := make([]ServerStatus, len(clients))

	var wg sync.WaitGroup
	for i, c := range clients {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			defer p.sem.Release(1)

			status, err := p.HealthCheck(ctx, c.Server().Alias)
			if err != nil {
				status = ServerStatus{
					Alias: c.Server().Alias,
					Health: HealthStatus{
						Status:    StatusCritical,
						Message:   err.Error(),
						Timestamp: time.Now(),
					},
				}
			}
			results[i] = status
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Alias < results[j].Alias })
	return results, nil
}

// FetchAllStats pulls the full stats document from every enabled server
// concurrently. Servers that fail to answer are omitted from the result.
func (p *Pool) FetchAllStats(ctx context.Context) map[string]map[string]any {
	clients := p.EnabledClients()
	results := make(map[string]map[string]any, len(clients))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range clients {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			defer p.sem.Release(1)

			stats, err := c.AllStats(ctx)
			if err != nil {
				p.logger.Warn("stats fetch failed", "server_alias", c.Server().Alias, "error", err)
				return
			}
			mu.Lock()
			results[c.Server().Alias] = stats
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// InvalidateHealth drops the cached status for alias, forcing the next
// health check to probe the server.
func (p *Pool) InvalidateHealth(alias string) {
	p.mu.Lock()
	delete(p.healthCache, alias)
	p.mu.Unlock()
}
