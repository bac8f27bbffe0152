package modality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/vector"
)

// SCMPullRequest, SCMCommit, and SCMIssue are the narrow shapes the SCM
// handler needs from the external SCM API.
type SCMPullRequest struct {
	ID, Repo, Title string
	Files           []string
	Churn           int
	Labels          []string
	MergedAt        time.Time
}

type SCMCommit struct {
	SHA, Repo, Message string
	Files              []string
	Churn              int
	Timestamp          time.Time
}

type SCMIssue struct {
	ID, Repo, Title string
	Labels          []string
	Comments        int
	Reactions       int
	CreatedAt       time.Time
}

// SCMSource is the external collaborator behind the SCM handler.
type SCMSource interface {
	FetchPullRequests(ctx context.Context, repo string, since time.Time) ([]SCMPullRequest, error)
	FetchCommits(ctx context.Context, repo string, since time.Time) ([]SCMCommit, error)
	FetchIssues(ctx context.Context, repo string, since time.Time) ([]SCMIssue, error)
}

// ComponentRule maps a file path prefix to component and endpoint IDs.
type ComponentRule struct {
	PathPrefix  string
	Components  []string
	EndpointIDs []string
}

// SCMConfig is the handler's declarative configuration.
type SCMConfig struct {
	Enabled    bool
	Weight     float64
	TimeoutMs  int
	MaxResults int
	Repos      []string
	Rules      []ComponentRule
}

// dissatisfactionLabels flag issues as support cases.
var dissatisfactionLabels = map[string]bool{
	"regression": true, "bug": true, "dissatisfied": true, "urgent": true,
}

// breakingLabels flag PRs/commits as higher-weight activity.
var breakingLabels = map[string]bool{
	"breaking_change": true, "bug": true,
}

// SCMState tracks per-repo ingest checkpoints.
type SCMState struct {
	LastPRISO, LastCommitISO, LastIssueISO map[string]time.Time
}

// SCMHandler implements the scm modality.
type SCMHandler struct {
	cfg      SCMConfig
	source   SCMSource
	vec      *vector.Service
	g        *graph.Service
	state    SCMState
	log      *slog.Logger
	notifier *PagingNotifier
}

// SetPagingNotifier wires an optional paging-backpressure notifier; nil
// leaves publishing disabled.
func (h *SCMHandler) SetPagingNotifier(n *PagingNotifier) { h.notifier = n }

// NewSCMHandler builds the scm modality handler.
func NewSCMHandler(cfg SCMConfig, source SCMSource, vec *vector.Service, g *graph.Service, log *slog.Logger) *SCMHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SCMHandler{cfg: cfg, source: source, vec: vec, g: g, log: log, state: SCMState{
		LastPRISO:     map[string]time.Time{},
		LastCommitISO: map[string]time.Time{},
		LastIssueISO:  map[string]time.Time{},
	}}
}

func (h *SCMHandler) ModalityID() ID  { return SCM }
func (h *SCMHandler) CanIngest() bool { return h.cfg.Enabled && h.source != nil }
func (h *SCMHandler) CanQuery() bool  { return h.cfg.Enabled }

// resolveComponents maps changed file paths to component/endpoint IDs via
// prefix match over the configured rule list.
func (h *SCMHandler) resolveComponents(files []string) (components, endpoints []string) {
	seenC, seenE := map[string]bool{}, map[string]bool{}
	for _, f := range files {
		for _, rule := range h.cfg.Rules {
			if strings.HasPrefix(f, rule.PathPrefix) {
				for _, c := range rule.Components {
					if !seenC[c] {
						seenC[c] = true
						components = append(components, c)
					}
				}
				for _, e := range rule.EndpointIDs {
					if !seenE[e] {
						seenE[e] = true
						endpoints = append(endpoints, e)
					}
				}
			}
		}
	}
	return components, endpoints
}

func prWeight(files, churn int, labels []string) float64 {
	w := 1 + math.Min(float64(files), 10)*0.1 + math.Min(float64(churn)/200, 1)*0.5
	for _, l := range labels {
		if breakingLabels[strings.ToLower(l)] {
			w += 0.3
			break
		}
	}
	return w
}

func commitWeight(files, churn int) float64 {
	return 1 + math.Min(float64(files), 10)*0.1 + math.Min(float64(churn)/200, 1)*0.5
}

func issueWeight(comments, reactions int, labels []string) float64 {
	w := 0.05*math.Min(float64(comments), 20) + 0.03*math.Min(float64(reactions), 20)
	for _, l := range labels {
		if dissatisfactionLabels[strings.ToLower(l)] {
			w += 0.4
			break
		}
	}
	return w
}

func hasDissatisfactionLabel(labels []string) bool {
	for _, l := range labels {
		if dissatisfactionLabels[strings.ToLower(l)] {
			return true
		}
	}
	return false
}

// Ingest pulls PRs, commits, and issues since the last checkpoint per repo.
func (h *SCMHandler) Ingest(ctx context.Context, scopeOverride map[string]any) (Counts, error) {
	var counts Counts
	if !h.CanIngest() {
		return counts, nil
	}

	repos := h.cfg.Repos
	if override, ok := scopeOverride["repos"].([]string); ok && len(override) > 0 {
		repos = override
	}

	var chunks []chunk.Chunk
	for _, repo := range repos {
		prs, err := h.source.FetchPullRequests(ctx, repo, h.state.LastPRISO[repo])
		if err != nil {
			counts.Errors++
		}
		for _, pr := range prs {
			counts.ItemsSeen++
			components, _ := h.resolveComponents(pr.Files)
			weight := prWeight(len(pr.Files), pr.Churn, pr.Labels)
			chunks = append(chunks, scmChunk(chunk.SourceSCM, "pr:"+pr.ID, pr.Title, pr.Repo, components, pr.MergedAt))
			if h.g != nil {
				_ = h.g.UpsertPR(ctx, graph.PR{ID: pr.ID, Repo: pr.Repo, Title: pr.Title, FilesCount: len(pr.Files), Churn: pr.Churn, Labels: pr.Labels})
				for _, c := range components {
					_ = h.g.UpsertActivitySignal(ctx, graph.ActivitySignal{
						ID: "activity:pr:" + pr.ID, Component: c, Weight: weight, Kind: "pr", Labels: pr.Labels,
						OccurredAt: timePtr(pr.MergedAt),
					})
				}
			}
			if pr.MergedAt.After(h.state.LastPRISO[repo]) {
				h.state.LastPRISO[repo] = pr.MergedAt
			}
		}

		commits, err := h.source.FetchCommits(ctx, repo, h.state.LastCommitISO[repo])
		if err != nil {
			counts.Errors++
		}
		for _, c := range commits {
			counts.ItemsSeen++
			components, _ := h.resolveComponents(c.Files)
			weight := commitWeight(len(c.Files), c.Churn)
			chunks = append(chunks, scmChunk(chunk.SourceSCM, "commit:"+c.SHA, c.Message, c.Repo, components, c.Timestamp))
			if h.g != nil {
				_ = h.g.UpsertCommit(ctx, graph.Commit{SHA: c.SHA, Repo: c.Repo, Message: c.Message, FilesCount: len(c.Files), Churn: c.Churn})
				for _, comp := range components {
					_ = h.g.UpsertActivitySignal(ctx, graph.ActivitySignal{
						ID: "activity:commit:" + c.SHA, Component: comp, Weight: weight, Kind: "commit", OccurredAt: timePtr(c.Timestamp),
					})
				}
			}
			if c.Timestamp.After(h.state.LastCommitISO[repo]) {
				h.state.LastCommitISO[repo] = c.Timestamp
			}
		}

		issues, err := h.source.FetchIssues(ctx, repo, h.state.LastIssueISO[repo])
		if err != nil {
			counts.Errors++
		}
		for _, is := range issues {
			counts.ItemsSeen++
			weight := issueWeight(is.Comments, is.Reactions, is.Labels)
			// Issues carry no changed-file list, so resolve components by
			// matching the repo identifier itself against the same
			// path-prefix rules PRs/commits use.
			components, _ := h.resolveComponents([]string{is.Repo})
			chunks = append(chunks, scmChunk(chunk.SourceIssue, "issue:"+is.ID, is.Title, is.Repo, components, is.CreatedAt))
			if h.g != nil {
				_ = h.g.UpsertIssue(ctx, graph.Issue{ID: is.ID, Repo: is.Repo, Title: is.Title, Labels: is.Labels, Comments: is.Comments, Reactions: is.Reactions})
				if hasDissatisfactionLabel(is.Labels) {
					_ = h.g.UpsertSupportCase(ctx, graph.SupportCase{ID: "support:" + is.ID, IssueID: is.ID, Labels: is.Labels, CreatedAt: timePtr(is.CreatedAt)})
				}
				for _, c := range components {
					_ = h.g.UpsertActivitySignal(ctx, graph.ActivitySignal{
						ID: "activity:issue:" + is.ID, Component: c, Weight: weight, Kind: "issue", Labels: is.Labels,
						OccurredAt: timePtr(is.CreatedAt),
					})
				}
			}
			if is.CreatedAt.After(h.state.LastIssueISO[repo]) {
				h.state.LastIssueISO[repo] = is.CreatedAt
			}
		}

		h.notifier.notify(SCM, repo, len(prs)+len(commits)+len(issues))
	}

	if len(chunks) == 0 {
		return counts, nil
	}
	if h.vec != nil {
		if _, err := h.vec.IndexChunks(ctx, chunks); err != nil {
			return counts, fmt.Errorf("scm: index chunks: %w", err)
		}
	}
	counts.ChunksWritten = len(chunks)
	return counts, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func scmChunk(sourceType chunk.SourceType, id, title, repo string, components []string, ts time.Time) chunk.Chunk {
	entityID := chunk.EntityID("scm", repo+":"+id)
	comp := ""
	if len(components) > 0 {
		comp = components[0]
	}
	return chunk.Chunk{
		ChunkID:    entityID,
		EntityID:   entityID,
		SourceType: sourceType,
		Text:       chunk.Clamp(title),
		Component:  comp,
		Timestamp:  &ts,
		Tags:       []string{"scm", repo},
		Metadata: map[string]any{
			chunk.MetaSourceID: repo,
		},
	}
}

// Query searches the scm modality by semantic similarity.
func (h *SCMHandler) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() || h.vec == nil {
		return nil, nil
	}
	hits, err := h.vec.SemanticSearch(ctx, text, vector.SearchOptions{
		TopK:        limit,
		SourceTypes: []chunk.SourceType{chunk.SourceSCM, chunk.SourceIssue},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Result{
			Modality: SCM,
			Source:   hit.Chunk.SourceType,
			ChunkID:  hit.Chunk.ChunkID,
			EntityID: hit.Chunk.EntityID,
			Title:    hit.Chunk.Text,
			Text:     hit.Chunk.Text,
			RawScore: hit.Score,
			Score:    Weighted(hit.Score, h.cfg.Weight),
			Metadata: hit.Chunk.Metadata,
		})
	}
	return out, nil
}
