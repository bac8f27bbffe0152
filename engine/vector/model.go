package vector

import "github.com/sentineleng/sentinel/engine/chunk"

// SearchOptions controls a semantic search call. Every non-zero field is
// applied as a conjunctive "must" filter clause.
type SearchOptions struct {
	TopK            int
	MinScore        float64
	SourceTypes     []chunk.SourceType
	Components      []string
	Services        []string
	Tags            []string
	Since           *int64 // unix seconds
	MetadataFilters map[string]any
}

// SearchResult is a single scored hit from a semantic search.
type SearchResult struct {
	Chunk chunk.Chunk
	Score float64
}

// Record is what gets written to the vector backend for one chunk.
type Record struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}
