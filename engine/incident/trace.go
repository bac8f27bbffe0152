package incident

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/orchestrator"
)

// TraceStore implements orchestrator.TraceRecorder: an append-only
// JSON-lines query-trace log, one line per invocation. Grounded on the
// registry's JSON-file persistence, but append-only rather than
// rewrite-and-rename, since the data model declares traces "immutable
// after append" rather than a rewritable snapshot.
type TraceStore struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewTraceStore builds a TraceStore writing to path.
func NewTraceStore(path string, log *slog.Logger) *TraceStore {
	if log == nil {
		log = slog.Default()
	}
	return &TraceStore{path: path, log: log}
}

// AppendQueryTrace implements orchestrator.TraceRecorder.
func (t *TraceStore) AppendQueryTrace(ctx context.Context, query string, resp orchestrator.Response) {
	trace := QueryTrace{
		QueryID:         uuid.NewString(),
		Question:        query,
		CreatedAt:       time.Now(),
		ModalitiesUsed:  modalityStrings(resp.ModalitiesUsed),
		RetrievedChunks: retrievedChunkRefs(resp.Telemetry),
		ChosenChunks:    chunkRefs(resp.Results),
	}
	if err := t.append(trace); err != nil {
		t.log.Warn("incident: query trace append failed", "error", err)
	}
}

func (t *TraceStore) append(trace QueryTrace) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(trace)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func modalityStrings(ids []modality.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func retrievedChunkRefs(telemetry []orchestrator.HandlerOutcome) []ChunkRef {
	var out []ChunkRef
	for _, outc := range telemetry {
		out = append(out, chunkRefs(outc.Results)...)
	}
	return out
}

func chunkRefs(results []modality.Result) []ChunkRef {
	out := make([]ChunkRef, 0, len(results))
	for _, r := range results {
		sourceID, _ := r.Metadata[chunk.MetaSourceID].(string)
		out = append(out, ChunkRef{
			ChunkID:    r.ChunkID,
			SourceType: string(r.Source),
			SourceID:   sourceID,
			Modality:   string(r.Modality),
			Title:      r.Title,
			Score:      r.Score,
			URL:        r.URL,
			Metadata:   r.Metadata,
		})
	}
	return out
}
