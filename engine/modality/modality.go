// Package modality defines the common Modality Handler contract and
// implements the per-source handlers: chat, scm, docs, doc-issues, video,
// files, and web-fallback. Each handler normalizes its external source into
// chunk.Chunk values and writes them to the Vector and Graph Services,
// generalized from the teacher's engine/scraper + engine/ingest pipeline
// (one automotive-forum pipeline) into one fn.Stage-composed pipeline per
// modality.
package modality

import (
	"context"

	"github.com/sentineleng/sentinel/engine/chunk"
)

// ID enumerates the modalities a query or ingest run can target.
type ID string

const (
	Chat        ID = "chat"
	SCM         ID = "scm"
	Docs        ID = "docs"
	DocIssues   ID = "doc_issues"
	Video       ID = "video"
	Files       ID = "files"
	WebFallback ID = "web_fallback"
)

// Counts summarizes one ingest run.
type Counts struct {
	ChunksWritten int
	ItemsSeen     int
	Errors        int
}

// Result is one scored hit returned by a handler's Query.
type Result struct {
	Modality  ID
	Source    chunk.SourceType
	ChunkID   string
	EntityID  string
	Title     string
	Text      string
	Score     float64 // raw_score * modality.weight
	RawScore  float64
	URL       string
	Metadata  map[string]any
}

// Weighted applies a modality weight to raw_score, producing score.
func Weighted(raw, weight float64) float64 { return raw * weight }

// Handler is the contract every modality implements.
type Handler interface {
	ModalityID() ID
	CanIngest() bool
	CanQuery() bool
	Ingest(ctx context.Context, scopeOverride map[string]any) (Counts, error)
	Query(ctx context.Context, text string, limit int) ([]Result, error)
}
