package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentineleng/sentinel/engine/modality"
)

type fakeHandler struct {
	id         modality.ID
	canIngest  bool
	canQuery   bool
}

func (f *fakeHandler) ModalityID() modality.ID { return f.id }
func (f *fakeHandler) CanIngest() bool         { return f.canIngest }
func (f *fakeHandler) CanQuery() bool          { return f.canQuery }
func (f *fakeHandler) Ingest(_ context.Context, _ map[string]any) (modality.Counts, error) {
	return modality.Counts{}, nil
}
func (f *fakeHandler) Query(_ context.Context, _ string, _ int) ([]modality.Result, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	statePath := filepath.Join(t.TempDir(), "search_registry.json")
	handlers := map[modality.ID]modality.Handler{
		modality.Chat:        &fakeHandler{id: modality.Chat, canIngest: true, canQuery: true},
		modality.SCM:         &fakeHandler{id: modality.SCM, canIngest: true, canQuery: true},
		modality.WebFallback: &fakeHandler{id: modality.WebFallback, canIngest: false, canQuery: true},
	}
	configs := map[modality.ID]ModalityConfig{
		modality.Chat:        {Enabled: true, Weight: 1, TimeoutMs: 500, MaxResults: 10},
		modality.SCM:         {Enabled: true, Weight: 1, TimeoutMs: 500, MaxResults: 10},
		modality.WebFallback: {Enabled: true, FallbackOnly: true, Weight: 0.5, TimeoutMs: 500, MaxResults: 5},
	}
	return New(statePath, handlers, configs), statePath
}

func TestIterIngestionHandlersExcludesNonIngesters(t *testing.T) {
	r, _ := newTestRegistry(t)
	handlers := r.IterIngestionHandlers()
	if len(handlers) != 2 {
		t.Fatalf("expected 2 ingestion handlers, got %d", len(handlers))
	}
	for _, h := range handlers {
		if h.ModalityID() == modality.WebFallback {
			t.Fatalf("web fallback must never be an ingestion handler")
		}
	}
}

func TestIterQueryHandlersExcludesFallbackByDefault(t *testing.T) {
	r, _ := newTestRegistry(t)
	handlers := r.IterQueryHandlers(false, nil)
	if len(handlers) != 2 {
		t.Fatalf("expected 2 query handlers without fallback, got %d", len(handlers))
	}
	withFallback := r.IterQueryHandlers(true, nil)
	if len(withFallback) != 3 {
		t.Fatalf("expected 3 query handlers with fallback, got %d", len(withFallback))
	}
}

func TestIterQueryHandlersFiltersByModalityAllowList(t *testing.T) {
	r, _ := newTestRegistry(t)
	handlers := r.IterQueryHandlers(false, []modality.ID{modality.Chat})
	if len(handlers) != 1 || handlers[0].ModalityID() != modality.Chat {
		t.Fatalf("expected only chat handler, got %v", handlers)
	}
}

func TestUpdateStatePersistsAtomicallyAndStampsHash(t *testing.T) {
	r, statePath := newTestRegistry(t)
	hash := r.ConfigHash()

	if err := r.UpdateState(modality.Chat, nil, nil, map[string]any{"channels_scanned": 3}); err != nil {
		t.Fatalf("update state: %v", err)
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal state file: %v", err)
	}
	st, ok := s.Modalities[string(modality.Chat)]
	if !ok {
		t.Fatalf("expected chat entry in persisted state")
	}
	if st.ConfigHash != hash {
		t.Fatalf("expected persisted config_hash %q, got %q", hash, st.ConfigHash)
	}

	// No stray temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(statePath))
	for _, e := range entries {
		if e.Name() != filepath.Base(statePath) {
			t.Fatalf("unexpected leftover file in state dir: %s", e.Name())
		}
	}
}

func TestNeedsReindexDetectsConfigDrift(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.UpdateState(modality.Chat, nil, nil, nil); err != nil {
		t.Fatalf("update state: %v", err)
	}
	if r.NeedsReindex(modality.Chat) {
		t.Fatalf("expected no drift immediately after update")
	}

	// Simulate a config change by mutating the entry's cfg directly.
	r.mu.Lock()
	e := r.entries[modality.Chat]
	e.cfg.Weight = 2.0
	r.entries[modality.Chat] = e
	r.mu.Unlock()

	if !r.NeedsReindex(modality.Chat) {
		t.Fatalf("expected drift after config change")
	}
}

func TestUpdateStateRecordsLastError(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.UpdateState(modality.SCM, nil, errors.New("rate limited"), nil); err != nil {
		t.Fatalf("update state: %v", err)
	}
	st, ok := r.State(modality.SCM)
	if !ok {
		t.Fatalf("expected state for scm")
	}
	if st.LastError != "rate limited" {
		t.Fatalf("expected last_error recorded, got %q", st.LastError)
	}
}

func TestReloadingRegistryReadsPersistedState(t *testing.T) {
	r, statePath := newTestRegistry(t)
	if err := r.UpdateState(modality.Chat, nil, nil, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("update state: %v", err)
	}

	handlers := map[modality.ID]modality.Handler{
		modality.Chat: &fakeHandler{id: modality.Chat, canIngest: true, canQuery: true},
	}
	configs := map[modality.ID]ModalityConfig{
		modality.Chat: {Enabled: true, Weight: 1, TimeoutMs: 500, MaxResults: 10},
	}
	reloaded := New(statePath, handlers, configs)
	st, ok := reloaded.State(modality.Chat)
	if !ok {
		t.Fatalf("expected reloaded registry to see persisted chat state")
	}
	if st.Extra["k"] != "v" {
		t.Fatalf("expected extra field preserved across reload, got %v", st.Extra)
	}
}
