package modality

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
)

// DocIssue is one persisted documentation issue record.
type DocIssue struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Path            string    `json:"path"`
	Severity        string    `json:"severity"` // critical, high, medium, low
	ComponentHints  []string  `json:"component_hints"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var severityWeight = map[string]float64{
	"critical": 3.0,
	"high":     2.0,
	"medium":   1.2,
	"low":      0.5,
}

func recencyMultiplier(updatedAt time.Time, now time.Time) float64 {
	age := now.Sub(updatedAt)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.7
	default:
		return 0.4
	}
}

// DocIssuesConfig is the handler's declarative configuration.
type DocIssuesConfig struct {
	Enabled    bool
	Weight     float64
	MaxResults int
	StatePath  string // path to the persisted JSON array of DocIssue
}

// DocIssuesHandler is query-only: it reads a persisted JSON list of doc
// issues and scores them against the query text.
type DocIssuesHandler struct {
	cfg DocIssuesConfig
	log *slog.Logger
	now func() time.Time
}

// NewDocIssuesHandler builds the doc-issues modality handler.
func NewDocIssuesHandler(cfg DocIssuesConfig, log *slog.Logger) *DocIssuesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DocIssuesHandler{cfg: cfg, log: log, now: time.Now}
}

func (h *DocIssuesHandler) ModalityID() ID  { return DocIssues }
func (h *DocIssuesHandler) CanIngest() bool { return false }
func (h *DocIssuesHandler) CanQuery() bool  { return h.cfg.Enabled }

// Ingest is a no-op: doc issues are authored externally, not ingested here.
func (h *DocIssuesHandler) Ingest(_ context.Context, _ map[string]any) (Counts, error) {
	return Counts{}, nil
}

func (h *DocIssuesHandler) load() ([]DocIssue, error) {
	data, err := os.ReadFile(h.cfg.StatePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var issues []DocIssue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Query scores every persisted doc issue against text and returns the
// top-`limit` by descending score.
func (h *DocIssuesHandler) Query(_ context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() {
		return nil, nil
	}
	issues, err := h.load()
	if err != nil {
		h.log.Warn("doc_issues: load failed", "error", err)
		return nil, nil
	}

	lowerQuery := strings.ToLower(text)
	now := h.now()
	var results []Result
	for _, is := range issues {
		score := severityWeight[is.Severity] * recencyMultiplier(is.UpdatedAt, now)
		if strings.Contains(strings.ToLower(is.Summary), lowerQuery) ||
			strings.Contains(strings.ToLower(is.Title), lowerQuery) ||
			strings.Contains(strings.ToLower(is.Path), lowerQuery) {
			score += 0.5
		}
		for _, hint := range is.ComponentHints {
			if strings.Contains(lowerQuery, strings.ToLower(hint)) {
				score += 0.5
				break
			}
		}
		entityID := chunk.EntityID("doc_issue", is.ID)
		results = append(results, Result{
			Modality:  DocIssues,
			Source:    chunk.SourceDocIssue,
			EntityID:  entityID,
			Title:     is.Title,
			Text:      is.Summary,
			RawScore:  score,
			Score:     Weighted(score, h.cfg.Weight),
			URL:       is.Path,
			Metadata: map[string]any{
				chunk.MetaPath: is.Path,
				"severity":     is.Severity,
			},
		})
	}

	stableSortByScoreDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// stableSortByScoreDesc sorts in place, preserving input order for ties.
func stableSortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
