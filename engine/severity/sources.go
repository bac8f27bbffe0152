package severity

import (
	"context"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/vector"
)

// Subject identifies what a severity score is computed for: a doc issue
// plus the graph entities its components/channels/repos touch.
type Subject struct {
	DocIssueID       string
	BaseSeverity     string
	ImpactLevel      string
	UpdatedAt        time.Time
	Labels           []string
	Components       []string
	ChatChannels     []string
	CriticalChannels map[string]bool
	QueryText        string // doc title+summary, used for the semantic axis
}

// ChatFeatureSource extracts the 7-day chat activity snapshot.
type ChatFeatureSource interface {
	ChatFeatures(ctx context.Context, channels []string, since time.Time, criticalChannels map[string]bool) (ChatFeatures, error)
}

// SCMFeatureSource extracts the 7-day SCM activity snapshot.
type SCMFeatureSource interface {
	SCMFeatures(ctx context.Context, components []string, since time.Time) (SCMFeatures, error)
}

// GraphFeatureSource extracts the structural/activity snapshot.
type GraphFeatureSource interface {
	GraphFeatures(ctx context.Context, components []string, since time.Time) (GraphFeatures, error)
}

// SemanticFeatureSource computes the configured semantic-drift pairs.
type SemanticFeatureSource interface {
	SemanticPairs(ctx context.Context, queryText string) ([]SemanticPairResult, error)
}

// GraphSource is the default ChatFeatureSource/SCMFeatureSource/
// GraphFeatureSource implementation, backed by a live Graph Service. Each
// method issues one isolated, independently re-runnable query, per the
// spec's feature-extraction contract.
type GraphSource struct {
	G *graph.Service
}

func (s *GraphSource) ChatFeatures(ctx context.Context, channels []string, since time.Time, criticalChannels map[string]bool) (ChatFeatures, error) {
	var f ChatFeatures
	if s.G == nil || !s.G.IsConfigured() || len(channels) == 0 {
		return f, nil
	}
	const cypher = `
MATCH (a:ActivitySignal {kind: 'chat'})
WHERE a.channel_id IN $channels AND a.occurred_at >= $since
RETURN count(a) AS messages,
       count(DISTINCT a.thread_ts) AS threads,
       count(DISTINCT a.author) AS authors,
       max(a.weight) AS max_weight,
       avg(a.weight) AS avg_weight,
       max(a.occurred_at) AS last_seen`
	rows, err := s.G.RunQuery(ctx, cypher, map[string]any{"channels": channels, "since": since.Unix()})
	if err != nil || len(rows) == 0 {
		return f, nil
	}
	row := rows[0]
	f.Messages = intProp(row, "messages")
	f.Threads = intProp(row, "threads")
	f.Authors = intProp(row, "authors")
	f.MaxWeight = floatProp(row, "max_weight")
	f.AvgWeight = floatProp(row, "avg_weight")
	f.HoursSinceLastSeen = hoursSince(row, "last_seen", since)
	for _, ch := range channels {
		if criticalChannels[ch] {
			f.CriticalChannel = true
			break
		}
	}
	return f, nil
}

func (s *GraphSource) SCMFeatures(ctx context.Context, components []string, since time.Time) (SCMFeatures, error) {
	var f SCMFeatures
	if s.G == nil || !s.G.IsConfigured() || len(components) == 0 {
		return f, nil
	}
	const cypher = `
MATCH (a:ActivitySignal)
WHERE a.kind IN ['pr', 'commit', 'issue'] AND a.component IN $components AND a.occurred_at >= $since
WITH a, size([l IN a.labels WHERE l IN ['breaking_change', 'bug']]) AS breaking
RETURN sum(CASE WHEN a.kind = 'pr' THEN 1 ELSE 0 END) AS prs,
       sum(CASE WHEN a.kind = 'commit' THEN 1 ELSE 0 END) AS commits,
       sum(CASE WHEN a.kind = 'issue' THEN 1 ELSE 0 END) AS issues,
       sum(breaking) AS breaking_count,
       max(a.weight) AS max_weight,
       max(a.occurred_at) AS last_seen`
	rows, err := s.G.RunQuery(ctx, cypher, map[string]any{"components": components, "since": since.Unix()})
	if err != nil || len(rows) == 0 {
		return f, nil
	}
	row := rows[0]
	f.PRs = intProp(row, "prs")
	f.Commits = intProp(row, "commits")
	f.Issues = intProp(row, "issues")
	f.BreakingLabelCount = intProp(row, "breaking_count")
	f.MaxWeight = floatProp(row, "max_weight")
	f.HoursSinceLastSeen = hoursSince(row, "last_seen", since)

	const docCypher = `
MATCH (c:Chunk {source_type: 'doc'})
WHERE c.component IN $components
RETURN count(c) AS doc_changes`
	if docRows, err := s.G.RunQuery(ctx, docCypher, map[string]any{"components": components}); err == nil && len(docRows) > 0 {
		f.DocChanges = intProp(docRows[0], "doc_changes")
	}
	return f, nil
}

func (s *GraphSource) GraphFeatures(ctx context.Context, components []string, since time.Time) (GraphFeatures, error) {
	var f GraphFeatures
	if s.G == nil || !s.G.IsConfigured() || len(components) == 0 {
		return f, nil
	}
	docSet, issueSet, downstream := map[string]bool{}, map[string]bool{}, map[string]bool{}
	serviceSet := map[string]bool{}
	for _, comp := range components {
		n, err := s.G.GetComponentNeighborhood(ctx, comp)
		if err != nil {
			continue
		}
		for _, d := range n.DocIDs {
			docSet[d] = true
		}
		for _, i := range n.IssueIDs {
			issueSet[i] = true
		}
		impact, err := s.G.GetAPIImpact(ctx, comp)
		if err == nil {
			for _, c := range impact.DownstreamIDs {
				downstream[c] = true
			}
			for _, svc := range impact.Components {
				serviceSet[svc] = true
			}
		}
	}
	f.Components = len(components)
	f.Docs = len(docSet)
	f.Services = len(serviceSet)
	f.RelatedDocIssues = len(issueSet)
	f.DownstreamComponents = len(downstream)

	const signalCypher = `
MATCH (a:ActivitySignal)
WHERE a.component IN $components AND a.occurred_at >= $since
RETURN sum(CASE WHEN a.kind = 'chat' THEN 1 ELSE 0 END) AS chat_signals,
       sum(CASE WHEN a.kind IN ['pr','commit'] THEN 1 ELSE 0 END) AS scm_signals`
	if rows, err := s.G.RunQuery(ctx, signalCypher, map[string]any{"components": components, "since": since.Unix()}); err == nil && len(rows) > 0 {
		f.ChatSignals7d = intProp(rows[0], "chat_signals")
		f.SCMSignals7d = intProp(rows[0], "scm_signals")
	}

	const supportCypher = `
MATCH (s:SupportCase)-[:REPORTS]->(:Issue)-[:TOUCHES]->(c:Component)
WHERE c.id IN $components
RETURN count(DISTINCT s) AS support_cases`
	if rows, err := s.G.RunQuery(ctx, supportCypher, map[string]any{"components": components}); err == nil && len(rows) > 0 {
		f.SupportCases = intProp(rows[0], "support_cases")
	}
	return f, nil
}

// VectorSource is the default SemanticFeatureSource, backed by a live
// Vector Service. Each pair filters by source type (and, for doc_vs_api,
// an additional "api" tag) then takes the mean top-K similarity as that
// pair's "similarity" term.
type VectorSource struct {
	V     *vector.Service
	Pairs []PairConfig
}

// PairConfig declares one semantic-drift pair.
type PairConfig struct {
	Name            string
	SourceTypes     []chunk.SourceType
	MetadataFilters map[string]any
	Weight          float64
	TopK            int
}

// DefaultPairs is the three pairs named in spec §4.8.
func DefaultPairs() []PairConfig {
	return []PairConfig{
		{Name: "doc_vs_chat", SourceTypes: []chunk.SourceType{chunk.SourceChat}, Weight: 1.0, TopK: 5},
		{Name: "doc_vs_scm", SourceTypes: []chunk.SourceType{chunk.SourceSCM}, Weight: 1.0, TopK: 5},
		{Name: "doc_vs_api", SourceTypes: []chunk.SourceType{chunk.SourceSCM}, MetadataFilters: map[string]any{"tags": []string{"api"}}, Weight: 0.8, TopK: 5},
	}
}

func (s *VectorSource) SemanticPairs(ctx context.Context, queryText string) ([]SemanticPairResult, error) {
	if s.V == nil || !s.V.IsConfigured() || queryText == "" {
		return nil, nil
	}
	pairs := s.Pairs
	if len(pairs) == 0 {
		pairs = DefaultPairs()
	}
	out := make([]SemanticPairResult, 0, len(pairs))
	for _, p := range pairs {
		hits, err := s.V.SemanticSearch(ctx, queryText, vector.SearchOptions{
			TopK:            p.TopK,
			SourceTypes:     p.SourceTypes,
			MetadataFilters: p.MetadataFilters,
		})
		if err != nil || len(hits) == 0 {
			out = append(out, SemanticPairResult{Name: p.Name, Similarity: 0, Weight: p.Weight})
			continue
		}
		var sum float64
		for _, h := range hits {
			sum += h.Score
		}
		out = append(out, SemanticPairResult{Name: p.Name, Similarity: sum / float64(len(hits)), Weight: p.Weight})
	}
	return out, nil
}

func intProp(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatProp(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func hoursSince(row map[string]any, key string, since time.Time) float64 {
	last := intProp(row, key)
	if last == 0 {
		return time.Since(since).Hours() + 24*7 // no activity: treat as stale
	}
	return time.Since(time.Unix(int64(last), 0)).Hours()
}
