// Package registry implements the Modality Registry: the handler table,
// per-modality enablement/fallback config, and persisted per-modality
// state, generalized from the teacher's cmd/ingest loadState/saveState
// JSON-file checkpoint pattern into a single atomically-rewritten snapshot
// with config-hash drift detection.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sentineleng/sentinel/engine/modality"
)

// ModalityConfig is the declarative per-modality slice of search config
// that feeds both handler behavior and the config_hash fingerprint.
type ModalityConfig struct {
	Enabled      bool
	FallbackOnly bool
	Weight       float64
	TimeoutMs    int
	MaxResults   int
}

// ModalityState is the per-modality persisted record.
type ModalityState struct {
	ModalityID    string         `json:"modality_id"`
	LastIndexedAt *time.Time     `json:"last_indexed_at,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	ConfigHash    string         `json:"config_hash"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// snapshot is the on-disk shape of the state file.
type snapshot struct {
	UpdatedAt time.Time                `json:"updated_at"`
	Modalities map[string]ModalityState `json:"modalities"`
}

// entry pairs a handler with its registry-level config.
type entry struct {
	handler modality.Handler
	cfg     ModalityConfig
}

// Registry owns the handler table, current search config, and
// per-modality state. State mutations are serialized under mu and
// persisted atomically.
type Registry struct {
	mu        sync.Mutex
	entries   map[modality.ID]entry
	statePath string
	state     snapshot
	log       func(format string, args ...any)
}

// New constructs a Registry, loading any previously persisted state file.
// Missing or corrupt state files start from an empty snapshot rather than
// failing — state is a cache of ingest checkpoints, not a source of truth.
func New(statePath string, handlers map[modality.ID]modality.Handler, configs map[modality.ID]ModalityConfig) *Registry {
	entries := make(map[modality.ID]entry, len(handlers))
	for id, h := range handlers {
		entries[id] = entry{handler: h, cfg: configs[id]}
	}
	r := &Registry{
		entries:   entries,
		statePath: statePath,
		state:     snapshot{Modalities: map[string]ModalityState{}},
	}
	r.loadState()
	return r
}

func (r *Registry) loadState() {
	if r.statePath == "" {
		return
	}
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		return
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return
	}
	if s.Modalities == nil {
		s.Modalities = map[string]ModalityState{}
	}
	r.state = s
}

// ConfigHash returns a deterministic hash of the sorted search-config
// block, used to detect when a modality's persisted state predates a
// config change.
func (r *Registry) ConfigHash() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configHashLocked()
}

func (r *Registry) configHashLocked() string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		cfg := r.entries[modality.ID(id)].cfg
		fmt.Fprintf(h, "%s|%t|%t|%.6f|%d|%d\n", id, cfg.Enabled, cfg.FallbackOnly, cfg.Weight, cfg.TimeoutMs, cfg.MaxResults)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IterIngestionHandlers returns every handler whose config is enabled and
// that reports CanIngest.
func (r *Registry) IterIngestionHandlers() []modality.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []modality.Handler
	for _, e := range r.entries {
		if e.cfg.Enabled && e.handler.CanIngest() {
			out = append(out, e.handler)
		}
	}
	return out
}

// IterQueryHandlers returns enabled handlers, excluding fallback_only
// modalities unless includeFallback is set, further filtered by an
// optional modality ID allow-list.
func (r *Registry) IterQueryHandlers(includeFallback bool, modalities []modality.ID) []modality.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	var allow map[modality.ID]bool
	if len(modalities) > 0 {
		allow = make(map[modality.ID]bool, len(modalities))
		for _, id := range modalities {
			allow[id] = true
		}
	}

	var out []modality.Handler
	for id, e := range r.entries {
		if !e.cfg.Enabled || !e.handler.CanQuery() {
			continue
		}
		if e.cfg.FallbackOnly && !includeFallback {
			continue
		}
		if allow != nil && !allow[id] {
			continue
		}
		out = append(out, e.handler)
	}
	return out
}

// EnabledPrimary returns the enabled, non-fallback-only modality IDs.
func (r *Registry) EnabledPrimary() []modality.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []modality.ID
	for id, e := range r.entries {
		if e.cfg.Enabled && !e.cfg.FallbackOnly {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EnabledFallback returns the enabled, fallback_only modality IDs.
func (r *Registry) EnabledFallback() []modality.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []modality.ID
	for id, e := range r.entries {
		if e.cfg.Enabled && e.cfg.FallbackOnly {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsEnabled reports whether id is currently enabled, primary or fallback.
func (r *Registry) IsEnabled(id modality.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].cfg.Enabled
}

// NeedsReindex reports whether the persisted config_hash for modalityID
// differs from the current hash. A modality that needs reindex remains
// queryable; this only affects status reporting.
func (r *Registry) NeedsReindex(id modality.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state.Modalities[string(id)]
	if !ok {
		return false
	}
	return st.ConfigHash != r.configHashLocked()
}

// State returns a copy of the persisted state for a modality.
func (r *Registry) State(id modality.ID) (ModalityState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state.Modalities[string(id)]
	return st, ok
}

// UpdateState stamps the current config_hash onto the modality's state
// record and rewrites the state file atomically via a temp-file-then-
// rename, so a reader never observes a partially written snapshot.
func (r *Registry) UpdateState(id modality.ID, lastIndexedAt *time.Time, lastErr error, extra map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	st := ModalityState{
		ModalityID:    string(id),
		LastIndexedAt: lastIndexedAt,
		LastError:     errMsg,
		ConfigHash:    r.configHashLocked(),
		Extra:         extra,
	}
	r.state.Modalities[string(id)] = st
	r.state.UpdatedAt = timeNow()

	return r.persistLocked()
}

func (r *Registry) persistLocked() error {
	if r.statePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal state: %w", err)
	}

	dir := filepath.Dir(r.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: ensure state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".search_registry-*.json.tmp")
	if err != nil {
		return fmt.Errorf("registry: create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, r.statePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: rename temp state file: %w", err)
	}
	return nil
}

// timeNow is a var so tests can stub it without a clock injection
// threaded through every call site.
var timeNow = time.Now
