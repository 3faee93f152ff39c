package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmagar/glances-mcp/internal/metricpath"
	"github.com/jmagar/glances-mcp/internal/metrics"
)

// ErrInsufficientData is returned when a metric has too little buffered
// history to compute a baseline from.
var ErrInsufficientData = errors.New("insufficient data for baseline")

// Baseline computation defaults.
const (
	DefaultMinSamples       = 10
	DefaultBaselineLookback = 24 * time.Hour
	DefaultCacheMaxAge      = time.Hour
)

// DefaultMetricPaths are the metrics sampled into rolling buffers when the
// store is not configured otherwise.
var DefaultMetricPaths = []string{
	"cpu.total",
	"mem.percent",
	"load.min1",
	"load.min5",
	"load.min15",
}

// StoreConfig controls buffering, sampling, and baseline validity.
type StoreConfig struct {
	// BufferCapacity is the per-metric ring size. Default: 288.
	BufferCapacity int

	// SampleInterval is the cadence of the background sampling loop.
	// Default: 5m.
	SampleInterval time.Duration

	// Validity is how long computed baselines stay usable. Default: 7d.
	Validity time.Duration

	// MinSamples is the fewest samples inside the lookback window that a
	// baseline may be computed from. Default: 10.
	MinSamples int

	// BaselineLookback bounds how far back samples count toward a
	// baseline. Default: 24h.
	BaselineLookback time.Duration

	// CacheMaxAge is how long a cached baseline is served before being
	// recomputed from fresh samples. Default: 1h.
	CacheMaxAge time.Duration

	// AnomalyThreshold is the z-score magnitude that flags an anomaly.
	// Default: 2.0.
	AnomalyThreshold float64

	// MetricPaths are the dot-notation paths sampled from each server's
	// stats document. Default: DefaultMetricPaths.
	MetricPaths []string

	// SnapshotDir, when set, is where buffer snapshots are persisted.
	SnapshotDir string
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c StoreConfig) WithDefaults() StoreConfig {
	result := c
	if result.BufferCapacity <= 0 {
		result.BufferCapacity = DefaultBufferCapacity
	}
	if result.SampleInterval <= 0 {
		result.SampleInterval = 5 * time.Minute
	}
	if result.Validity <= 0 {
		result.Validity = DefaultValidity
	}
	if result.MinSamples <= 0 {
		result.MinSamples = DefaultMinSamples
	}
	if result.BaselineLookback <= 0 {
		result.BaselineLookback = DefaultBaselineLookback
	}
	if result.CacheMaxAge <= 0 {
		result.CacheMaxAge = DefaultCacheMaxAge
	}
	if result.AnomalyThreshold <= 0 {
		result.AnomalyThreshold = 2.0
	}
	if len(result.MetricPaths) == 0 {
		result.MetricPaths = DefaultMetricPaths
	}
	return result
}

// StatsSource supplies per-server stats documents for sampling.
type StatsSource interface {
	FetchAllStats(ctx context.Context) map[string]map[string]any
}

// Store buffers metric samples per server and metric path, and caches the
// baselines computed from them.
type Store struct {
	config StoreConfig
	logger *slog.Logger

	mu        sync.RWMutex
	buffers   map[string]*Buffer
	baselines map[string]Baseline
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig, logger *slog.Logger) *Store {
	return &Store{
		config:    cfg.WithDefaults(),
		logger:    logger,
		buffers:   make(map[string]*Buffer),
		baselines: make(map[string]Baseline),
	}
}

func bufferKey(serverAlias, metricPath string) string {
	return serverAlias + "|" + metricPath
}

// Record appends one sample for a server metric.
func (s *Store) Record(serverAlias, metricPath string, value float64) {
	s.RecordAt(serverAlias, metricPath, value, time.Now())
}

// RecordAt appends one sample with an explicit timestamp.
func (s *Store) RecordAt(serverAlias, metricPath string, value float64, at time.Time) {
	key := bufferKey(serverAlias, metricPath)

	s.mu.Lock()
	buf, ok := s.buffers[key]
	if !ok {
		buf = NewBuffer(s.config.BufferCapacity)
		s.buffers[key] = buf
	}
	s.mu.Unlock()

	buf.Add(Sample{Timestamp: at, Value: value})
	metrics.SampleRecorded(serverAlias)
}

// RecordStats extracts the configured metric paths from a stats document and
// records each resolvable value.
func (s *Store) RecordStats(serverAlias string, stats map[string]any) {
	now := time.Now()
	for _, path := range s.config.MetricPaths {
		if v, ok := metricpath.Float(stats, path); ok {
			s.RecordAt(serverAlias, path, v, now)
		}
	}
}

// Samples returns the buffered samples for a server metric, oldest first.
func (s *Store) Samples(serverAlias, metricPath string) []Sample {
	s.mu.RLock()
	buf, ok := s.buffers[bufferKey(serverAlias, metricPath)]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return buf.Samples()
}

// MetricPaths returns the paths with buffered history for a server, sorted.
func (s *Store) MetricPaths(serverAlias string) []string {
	prefix := serverAlias + "|"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for key := range s.buffers {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}

// Baseline returns the baseline for a server metric, computing and caching a
// fresh one when the cached entry is missing, expired, or older than the
// cache max age. The second return is false when fewer than MinSamples
// samples fall inside the lookback window.
func (s *Store) Baseline(serverAlias, metricPath string) (Baseline, bool) {
	key := bufferKey(serverAlias, metricPath)

	s.mu.RLock()
	cached, ok := s.baselines[key]
	s.mu.RUnlock()
	if ok && !cached.Expired() && time.Since(cached.CreatedAt) < s.config.CacheMaxAge {
		return cached, true
	}

	s.mu.RLock()
	buf, ok := s.buffers[key]
	s.mu.RUnlock()
	if !ok {
		return Baseline{}, false
	}

	cutoff := time.Now().Add(-s.config.BaselineLookback)
	var values []float64
	for _, sample := range buf.Samples() {
		if sample.Timestamp.After(cutoff) {
			values = append(values, sample.Value)
		}
	}
	if len(values) < s.config.MinSamples {
		return Baseline{}, false
	}

	b, ok := Compute(serverAlias, metricPath, values, s.config.Validity)
	if !ok {
		return Baseline{}, false
	}

	s.mu.Lock()
	s.baselines[key] = b
	metrics.SetBaselineCacheSize(len(s.baselines))
	s.mu.Unlock()

	return b, true
}

// BaselineFor is like Baseline but reports the insufficient-history case as
// a wrapped ErrInsufficientData.
func (s *Store) BaselineFor(serverAlias, metricPath string) (Baseline, error) {
	b, ok := s.Baseline(serverAlias, metricPath)
	if !ok {
		return Baseline{}, fmt.Errorf("%s/%s: %w", serverAlias, metricPath, ErrInsufficientData)
	}
	return b, nil
}

// Trend computes the trend for a server metric over the trailing window.
func (s *Store) Trend(serverAlias, metricPath string, window time.Duration) Trend {
	return ComputeTrend(s.Samples(serverAlias, metricPath), window)
}

// Anomalies flags anomalous samples for a server metric within the window.
func (s *Store) Anomalies(serverAlias, metricPath string, window time.Duration) []Anomaly {
	s.mu.RLock()
	buf, ok := s.buffers[bufferKey(serverAlias, metricPath)]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return DetectAnomalies(buf.Window(window), s.config.AnomalyThreshold)
}

// CleanupExpired drops expired cached baselines and returns how many were removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.baselines {
		if b.Expired() {
			delete(s.baselines, key)
			removed++
		}
	}
	metrics.SetBaselineCacheSize(len(s.baselines))
	return removed
}

// Run samples every enabled server at the configured interval until the
// context is cancelled. A snapshot is written after each pass when a
// snapshot directory is configured.
func (s *Store) Run(ctx context.Context, source StatsSource) {
	ticker := time.NewTicker(s.config.SampleInterval)
	defer ticker.Stop()

	s.logger.Info("baseline sampling started", "interval", s.config.SampleInterval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("baseline sampling stopped")
			return
		case <-ticker.C:
			s.samplePass(ctx, source)
		}
	}
}

func (s *Store) samplePass(ctx context.Context, source StatsSource) {
	for alias, stats := range source.FetchAllStats(ctx) {
		s.RecordStats(alias, stats)
	}
	s.CleanupExpired()

	if s.config.SnapshotDir != "" {
		if err := s.SaveSnapshots(s.config.SnapshotDir); err != nil {
			s.logger.Warn("snapshot write failed", "error", err)
		}
	}
}
