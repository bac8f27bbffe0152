package modality

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/vector"
)

const (
	docWindowChars  = 1000
	docOverlapChars = 200
)

// FileConfig is the declarative config shared by the docs and files handlers.
type FileConfig struct {
	Enabled    bool
	Weight     float64
	TimeoutMs  int
	MaxResults int
	Roots      []string
	Extensions []string // empty means all files
}

// FileHandler chunks text files under configured roots with a fixed
// window/overlap, used for both the docs and files modalities — the same
// mechanics, two separately weighted/configured registry entries per the
// source type they stamp onto their chunks.
type FileHandler struct {
	id         ID
	sourceType chunk.SourceType
	cfg        FileConfig
	vec        *vector.Service
	g          *graph.Service
	log        *slog.Logger
}

// NewDocsHandler builds the docs modality handler (source_type=doc).
func NewDocsHandler(cfg FileConfig, vec *vector.Service, g *graph.Service, log *slog.Logger) *FileHandler {
	return newFileHandler(Docs, chunk.SourceDoc, cfg, vec, g, log)
}

// NewFilesHandler builds the files modality handler (source_type=file).
func NewFilesHandler(cfg FileConfig, vec *vector.Service, g *graph.Service, log *slog.Logger) *FileHandler {
	return newFileHandler(Files, chunk.SourceFile, cfg, vec, g, log)
}

func newFileHandler(id ID, st chunk.SourceType, cfg FileConfig, vec *vector.Service, g *graph.Service, log *slog.Logger) *FileHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FileHandler{id: id, sourceType: st, cfg: cfg, vec: vec, g: g, log: log}
}

func (h *FileHandler) ModalityID() ID  { return h.id }
func (h *FileHandler) CanIngest() bool { return h.cfg.Enabled }
func (h *FileHandler) CanQuery() bool  { return h.cfg.Enabled }

func (h *FileHandler) extensionAllowed(path string) bool {
	if len(h.cfg.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range h.cfg.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Ingest walks every configured root and chunks each matching text file.
func (h *FileHandler) Ingest(ctx context.Context, scopeOverride map[string]any) (Counts, error) {
	var counts Counts
	if !h.CanIngest() {
		return counts, nil
	}

	roots := h.cfg.Roots
	if override, ok := scopeOverride["roots"].([]string); ok && len(override) > 0 {
		roots = override
	}

	var chunks []chunk.Chunk
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !h.extensionAllowed(path) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				counts.Errors++
				return nil
			}
			counts.ItemsSeen++
			for _, c := range windowedChunks(h.sourceType, path, string(data)) {
				chunks = append(chunks, c)
			}
			return nil
		})
		if err != nil {
			h.log.Warn("docs: walk failed", "root", root, "error", err)
		}
	}

	if len(chunks) == 0 {
		return counts, nil
	}
	if h.vec != nil {
		if _, err := h.vec.IndexChunks(ctx, chunks); err != nil {
			return counts, fmt.Errorf("docs: index chunks: %w", err)
		}
	}
	if h.g != nil {
		seen := map[string]bool{}
		for _, c := range chunks {
			path, _ := c.Metadata[chunk.MetaPath].(string)
			if !seen[path] {
				seen[path] = true
				_ = h.g.UpsertSource(ctx, graph.Source{SourceID: path, SourceType: string(h.sourceType), DisplayName: filepath.Base(path)})
			}
			_ = h.g.UpsertChunk(ctx, graph.Chunk{
				ChunkID: c.ChunkID, EntityID: c.EntityID, SourceType: string(c.SourceType), SourceID: path,
			})
		}
	}
	counts.ChunksWritten = len(chunks)
	return counts, nil
}

// windowedChunks splits text into fixed windows with overlap, matching the
// docs handler's 1000-char window / 200-char overlap contract.
func windowedChunks(sourceType chunk.SourceType, path, text string) []chunk.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []chunk.Chunk
	step := docWindowChars - docOverlapChars
	if step <= 0 {
		step = docWindowChars
	}
	for start := 0; start < len(text); start += step {
		end := start + docWindowChars
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		entityID := chunk.EntityID("doc", fmt.Sprintf("%s#%d", path, start))
		out = append(out, chunk.Chunk{
			ChunkID:    entityID,
			EntityID:   entityID,
			SourceType: sourceType,
			Text:       chunk.Clamp(window),
			Metadata: map[string]any{
				chunk.MetaPath:        path,
				chunk.MetaStartOffset: start,
				chunk.MetaEndOffset:   end,
			},
		})
		if end == len(text) {
			break
		}
	}
	return out
}

// Query searches the handler's source type by semantic similarity.
func (h *FileHandler) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() || h.vec == nil {
		return nil, nil
	}
	hits, err := h.vec.SemanticSearch(ctx, text, vector.SearchOptions{
		TopK:        limit,
		SourceTypes: []chunk.SourceType{h.sourceType},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		path, _ := hit.Chunk.Metadata[chunk.MetaPath].(string)
		out = append(out, Result{
			Modality: h.id,
			Source:   h.sourceType,
			ChunkID:  hit.Chunk.ChunkID,
			EntityID: hit.Chunk.EntityID,
			Title:    path,
			Text:     hit.Chunk.Text,
			RawScore: hit.Score,
			Score:    Weighted(hit.Score, h.cfg.Weight),
			Metadata: hit.Chunk.Metadata,
		})
	}
	return out, nil
}
