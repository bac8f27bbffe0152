package incident

import (
	"context"
	"fmt"

	"github.com/sentineleng/sentinel/engine/severity"
)

// Builder composes an IncidentCandidate from a ReasoningResult per spec
// §4.9's four-step algorithm.
type Builder struct {
	severity *severity.Engine
}

// NewBuilder constructs a Builder. sev may be nil, in which case the
// candidate's SeverityPayload is left unset.
func NewBuilder(sev *severity.Engine) *Builder { return &Builder{severity: sev} }

// Build runs steps 1-3 of the algorithm: scope summarization, blast
// radius, and entity rollups, then (if a Severity Engine is wired)
// attaches an optional severity payload for the primary doc priority.
// Step 4 (trace persistence) is the orchestrator.TraceRecorder side,
// implemented by TraceStore.
func (b *Builder) Build(ctx context.Context, in ReasoningResult) (IncidentCandidate, error) {
	scope := summarizeScope(in)
	idx := buildEvidenceIndex(in.Evidence)
	entities := buildEntities(in, scope, idx)

	if err := validateEntityEvidenceRefs(in.Evidence, entities); err != nil {
		return IncidentCandidate{}, err
	}

	distinctSources := distinctEvidenceSources(in.Evidence)
	avgFreshness := averageFreshness(in.Evidence)
	score, label := blastRadius(blastRadiusInputs{
		distinctSourceTypes: distinctSources,
		components:          len(scope.ComponentIDs),
		docs:                len(scope.DocIDs),
		issues:              len(scope.IssueIDs),
		chatAndSCMEvidence:  len(scope.ChatThreadIDs) + len(scope.SCMRefs),
		avgFreshnessScore:   avgFreshness,
	})

	counts := map[string]int{
		"evidence":   len(in.Evidence),
		"components": len(scope.ComponentIDs),
		"docs":       len(scope.DocIDs),
		"issues":     len(scope.IssueIDs),
	}

	modalitiesUsed := make([]string, 0, len(in.ModalitiesUsed))
	for _, m := range in.ModalitiesUsed {
		modalitiesUsed = append(modalitiesUsed, string(m))
	}

	candidate := IncidentCandidate{
		Summary:          in.Summary,
		Components:       scope.ComponentIDs,
		DocPriorities:    in.DocPriorities,
		SourcesUsed:      modalitiesUsed,
		Counts:           counts,
		IncidentScope:    scope,
		Severity:         label,
		BlastRadiusScore: score,
		Evidence:         in.Evidence,
		IncidentEntities: entities,
		BrainTraceURL:    in.BrainTraceURL,
		BrainUniverseURL: in.BrainUniverseURL,
	}

	if b.severity != nil && len(in.DocPriorities) > 0 {
		payload, err := b.severity.Score(ctx, severity.Subject{
			DocIssueID: in.DocPriorities[0].DocID,
			QueryText:  in.Query,
			Components: scope.ComponentIDs,
		})
		if err == nil {
			candidate.SeverityPayload = &payload
		}
	}

	return candidate, nil
}

// validateEntityEvidenceRefs enforces the data-model invariant: every
// evidence_id referenced by an entity must exist in the evidence list.
func validateEntityEvidenceRefs(evidence []Evidence, entities []IncidentEntity) error {
	known := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		known[ev.EvidenceID] = true
	}
	for _, e := range entities {
		for _, id := range e.EvidenceIDs {
			if !known[id] {
				return fmt.Errorf("incident: entity %q references unknown evidence_id %q", e.EntityID, id)
			}
		}
	}
	return nil
}

func distinctEvidenceSources(evidence []Evidence) []string {
	seen := map[string]bool{}
	var out []string
	for _, ev := range evidence {
		if !seen[ev.Source] {
			seen[ev.Source] = true
			out = append(out, ev.Source)
		}
	}
	return out
}
