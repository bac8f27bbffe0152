// Package vector implements the Vector Service: embedding, upserting, and
// filtered semantic search against a remote HTTP/JSON vector backend. The
// wire contract (collections, points, search) is spoken directly over
// net/http rather than through a generated client, grounded on the
// teacher's existing raw-HTTP embedding client and Qdrant query helper.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/sentineleng/sentinel/engine/chunk"
)

// Config configures the Vector Service.
type Config struct {
	Enabled        bool
	URL            string
	APIKey         string
	Collection     string
	Dimension      int
	EmbeddingModel string
	EmbeddingURL   string
	EmbeddingKey   string
	MinScore       float64
	DefaultTopK    int
}

// Service is the Vector Service. A Service with Enabled=false (or a nil
// Embedder) degrades every call to the BackendUnavailable behavior: reads
// return empty results, writes are no-ops.
type Service struct {
	cfg      Config
	wire     *wireClient
	embed    Embedder
	log      *slog.Logger
	mu       sync.Mutex
	ensured  bool
}

// New constructs a Vector Service. hc is the shared HTTP client (see
// pkg/resilience connection pool); a nil hc uses http.DefaultClient.
func New(cfg Config, embed Embedder, hc *http.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	var wc *wireClient
	if cfg.Enabled && cfg.URL != "" {
		wc = newWireClient(cfg.URL, cfg.APIKey, hc)
	}
	return &Service{cfg: cfg, wire: wc, embed: embed, log: log}
}

// IsConfigured reports whether the service has a usable backend.
func (s *Service) IsConfigured() bool {
	return s.cfg.Enabled && s.wire != nil && s.embed != nil
}

func (s *Service) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	exists, err := s.wire.hasCollection(ctx, s.cfg.Collection)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.wire.createCollection(ctx, s.cfg.Collection, s.cfg.Dimension); err != nil {
			return err
		}
	}
	s.ensured = true
	return nil
}

// IndexChunks embeds and upserts chunks, skipping any chunk with empty text.
// Returns false (without erroring) when the service is unconfigured.
func (s *Service) IndexChunks(ctx context.Context, chunks []chunk.Chunk) (bool, error) {
	if !s.IsConfigured() {
		return false, nil
	}
	var toIndex []chunk.Chunk
	for _, c := range chunks {
		c.Text = chunk.Clamp(c.Text)
		if c.Empty() {
			continue
		}
		toIndex = append(toIndex, c)
	}
	if len(toIndex) == 0 {
		return true, nil
	}

	if err := s.ensureCollection(ctx); err != nil {
		return false, fmt.Errorf("vector: ensure collection: %w", err)
	}

	texts := make([]string, len(toIndex))
	for i, c := range toIndex {
		texts[i] = c.Text
	}
	embeddings, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("vector: embed: %w", err)
	}

	records := make([]Record, len(toIndex))
	for i, c := range toIndex {
		records[i] = Record{
			ID:        chunk.DerivePointID(c.EntityID),
			Embedding: embeddings[i],
			Payload:   chunkToPayload(c),
		}
	}

	collection := s.cfg.Collection
	if err := s.wire.upsert(ctx, collection, records); err != nil {
		return false, fmt.Errorf("vector: upsert: %w", err)
	}
	return true, nil
}

func chunkToPayload(c chunk.Chunk) map[string]any {
	p := map[string]any{
		"chunk_id":    c.ChunkID,
		"entity_id":   c.EntityID,
		"source_type": string(c.SourceType),
		"text":        c.Text,
		"component":   c.Component,
		"service":     c.Service,
		"tags":        c.Tags,
	}
	if c.Timestamp != nil {
		p["timestamp"] = c.Timestamp.Unix()
	}
	for k, v := range c.Metadata {
		p["metadata."+k] = v
	}
	return p
}

func payloadToChunk(id string, payload map[string]any) chunk.Chunk {
	c := chunk.Chunk{
		ChunkID:  id,
		Metadata: map[string]any{},
	}
	if v, ok := payload["entity_id"].(string); ok {
		c.EntityID = v
	}
	if v, ok := payload["source_type"].(string); ok {
		c.SourceType = chunk.SourceType(v)
	}
	if v, ok := payload["text"].(string); ok {
		c.Text = v
	}
	if v, ok := payload["component"].(string); ok {
		c.Component = v
	}
	if v, ok := payload["service"].(string); ok {
		c.Service = v
	}
	for k, v := range payload {
		if after, ok := strings.CutPrefix(k, "metadata."); ok {
			c.Metadata[after] = v
		}
	}
	return c
}

// SemanticSearch embeds the query and runs a conjunctive filtered search.
// An empty query returns zero results without calling the backend.
func (s *Service) SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if !s.IsConfigured() {
		return nil, nil
	}

	query = chunk.Clamp(query)
	vecs, err := s.embed.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("vector: embed query: %w", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK <= 0 {
		topK = 10
	}

	filter := buildFilter(opts)
	resp, err := s.wire.search(ctx, s.cfg.Collection, vecs[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}

	minScore := opts.MinScore
	if minScore == 0 {
		minScore = s.cfg.MinScore
	}

	var out []SearchResult
	for _, r := range resp.Result {
		if r.Score < minScore {
			continue
		}
		out = append(out, SearchResult{
			Chunk: payloadToChunk(r.ID, r.Payload),
			Score: r.Score,
		})
	}
	return out, nil
}

// buildFilter turns SearchOptions into the backend's must-clause shape.
// Every non-empty option becomes one conjunctive clause; list-valued
// metadata filters mean "any-of" via a match.any clause.
func buildFilter(opts SearchOptions) *filterClause {
	var must []map[string]any

	if len(opts.SourceTypes) > 0 {
		vals := make([]string, len(opts.SourceTypes))
		for i, t := range opts.SourceTypes {
			vals[i] = string(t)
		}
		must = append(must, map[string]any{"key": "source_type", "match": map[string]any{"any": vals}})
	}
	if len(opts.Components) > 0 {
		must = append(must, map[string]any{"key": "component", "match": map[string]any{"any": opts.Components}})
	}
	if len(opts.Services) > 0 {
		must = append(must, map[string]any{"key": "service", "match": map[string]any{"any": opts.Services}})
	}
	if len(opts.Tags) > 0 {
		must = append(must, map[string]any{"key": "tags", "match": map[string]any{"any": opts.Tags}})
	}
	if opts.Since != nil {
		must = append(must, map[string]any{"key": "timestamp", "range": map[string]any{"gte": *opts.Since}})
	}
	for k, v := range opts.MetadataFilters {
		key := "metadata." + k
		switch val := v.(type) {
		case []string:
			must = append(must, map[string]any{"key": key, "match": map[string]any{"any": val}})
		case []any:
			must = append(must, map[string]any{"key": key, "match": map[string]any{"any": val}})
		default:
			must = append(must, map[string]any{"key": key, "match": map[string]any{"value": val}})
		}
	}

	if len(must) == 0 {
		return nil
	}
	return &filterClause{Must: must}
}

// DeleteCollection drops the backing collection entirely. No-op when
// unconfigured.
func (s *Service) DeleteCollection(ctx context.Context) error {
	if !s.IsConfigured() {
		return nil
	}
	return s.wire.deleteCollection(ctx, s.cfg.Collection)
}
