// Package incident implements the Incident/Trace Builder: composing an
// incident candidate (scope, blast radius, per-entity rollups) from a
// reasoning run's evidence, and persisting an append-only query trace.
// Grounded on engine/modality/scm.go's weight-formula style for the
// blast-radius sub-scores and engine/registry's atomic-JSON-persistence
// idiom for the trace store.
package incident

import (
	"time"

	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/severity"
)

// Evidence is one cited source backing the incident candidate.
type Evidence struct {
	EvidenceID string         `json:"evidence_id"`
	Source     string         `json:"source"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Metadata   map[string]any `json:"metadata"`
}

// DocPriority is one prioritized documentation gap surfaced by the
// reasoning run.
type DocPriority struct {
	DocID  string `json:"doc_id"`
	Reason string `json:"reason"`
}

// Scope is the union of entity identifiers the incident touches.
type Scope struct {
	ComponentIDs  []string `json:"component_ids"`
	DocIDs        []string `json:"doc_ids"`
	IssueIDs      []string `json:"issue_ids"`
	ChatThreadIDs []string `json:"chat_thread_ids"` // channel:ts
	SCMRefs       []string `json:"scm_refs"`         // repo:pr_or_sha
}

// IncidentEntity is one per-entity rollup: an affected component, a
// referenced doc, a support/issue item, or a chat thread.
type IncidentEntity struct {
	EntityID                string         `json:"entity_id"`
	EntityType              string         `json:"entity_type"`
	ActivitySignals         map[string]int `json:"activity_signals"`
	DissatisfactionSignals  map[string]int `json:"dissatisfaction_signals"`
	EvidenceIDs             []string       `json:"evidence_ids"`
	SuggestedAction         string         `json:"suggested_action"`
}

// IncidentCandidate is the emitted result of one reasoning run.
type IncidentCandidate struct {
	Summary          string              `json:"summary"`
	Components       []string            `json:"components"`
	DocPriorities    []DocPriority       `json:"doc_priorities"`
	SourcesUsed      []string            `json:"sources_used"`
	Counts           map[string]int      `json:"counts"`
	IncidentScope    Scope               `json:"incident_scope"`
	Severity         string              `json:"severity"` // critical/high/medium/low
	BlastRadiusScore float64             `json:"blast_radius_score"`
	Evidence         []Evidence          `json:"evidence"`
	IncidentEntities []IncidentEntity    `json:"incident_entities"`
	SeverityPayload  *severity.Payload   `json:"severity_payload,omitempty"`

	// BrainTraceURL and BrainUniverseURL link the candidate back to the
	// upstream investigation/universe visualizer that produced the
	// reasoning run, when the caller supplied one. Both are commonly
	// empty: most reasoning runs originate outside that tooling.
	BrainTraceURL    string              `json:"brain_trace_url,omitempty"`
	BrainUniverseURL string              `json:"brain_universe_url,omitempty"`
}

// ReasoningResult is the input to Build: the output of one reasoning run
// (query answer, supporting evidence, components/doc-priorities surfaced,
// and which modalities contributed).
type ReasoningResult struct {
	Query          string
	Summary        string
	Evidence       []Evidence
	Components     []string
	DocPriorities  []DocPriority
	ModalitiesUsed []modality.ID

	// BrainTraceURL and BrainUniverseURL are forwarded verbatim onto the
	// built candidate when the caller has one (e.g. an orchestrator run
	// kicked off from an investigation/universe visualizer). Empty for
	// reasoning runs with no such upstream context.
	BrainTraceURL    string
	BrainUniverseURL string
}

// ChunkRef is one chunk reference inside a query trace.
type ChunkRef struct {
	ChunkID    string         `json:"chunk_id"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	Modality   string         `json:"modality"`
	Title      string         `json:"title"`
	Score      float64        `json:"score"`
	URL        string         `json:"url"`
	Metadata   map[string]any `json:"metadata"`
}

// QueryTrace is one append-only JSON-lines record.
type QueryTrace struct {
	QueryID         string     `json:"query_id"`
	Question        string     `json:"question"`
	CreatedAt       time.Time  `json:"created_at"`
	ModalitiesUsed  []string   `json:"modalities_used"`
	RetrievedChunks []ChunkRef `json:"retrieved_chunks"`
	ChosenChunks    []ChunkRef `json:"chosen_chunks"`
}
