package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// snapshot is the on-disk form of one server's buffered history.
type snapshot struct {
	ServerAlias string              `json:"server_alias"`
	SavedAt     time.Time           `json:"saved_at"`
	Metrics     map[string][]Sample `json:"metrics"`
}

// SaveSnapshots writes one JSON file per server with its buffered samples.
// Files are written atomically via a temp file rename.
func (s *Store) SaveSnapshots(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	byServer := make(map[string]*snapshot)

	s.mu.RLock()
	for key, buf := range s.buffers {
		alias, path, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		snap, exists := byServer[alias]
		if !exists {
			snap = &snapshot{
				ServerAlias: alias,
				SavedAt:     time.Now(),
				Metrics:     make(map[string][]Sample),
			}
			byServer[alias] = snap
		}
		snap.Metrics[path] = buf.Samples()
	}
	s.mu.RUnlock()

	for alias, snap := range byServer {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal snapshot for %s: %w", alias, err)
		}
		target := filepath.Join(dir, alias+".json")
		tmp := target + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot for %s: %w", alias, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return fmt.Errorf("rename snapshot for %s: %w", alias, err)
		}
	}
	return nil
}

// LoadSnapshots restores buffered history from a snapshot directory. Missing
// directories are not an error; corrupt files are skipped with a warning.
func (s *Store) LoadSnapshots(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn("snapshot read failed", "file", entry.Name(), "error", err)
			continue
		}
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("snapshot parse failed", "file", entry.Name(), "error", err)
			continue
		}
		if snap.ServerAlias == "" {
			continue
		}

		for path, samples := range snap.Metrics {
			key := bufferKey(snap.ServerAlias, path)
			buf := NewBuffer(s.config.BufferCapacity)
			buf.Restore(samples)

			s.mu.Lock()
			s.buffers[key] = buf
			s.mu.Unlock()
		}
		s.logger.Info("snapshot restored", "server_alias", snap.ServerAlias, "metrics", len(snap.Metrics))
	}
	return nil
}
