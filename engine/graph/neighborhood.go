package graph

import "context"

// GetComponentNeighborhood returns distinct linked doc IDs, issue IDs, PR
// IDs, chat-thread IDs, and API endpoint IDs for a component. Returns an
// empty (non-nil-field) Neighborhood when unconfigured.
func (s *Service) GetComponentNeighborhood(ctx context.Context, componentID string) (Neighborhood, error) {
	n := Neighborhood{ComponentID: componentID}
	if !s.IsConfigured() {
		return n, nil
	}

	const cypher = `
MATCH (c:Component {id: $id})
OPTIONAL MATCH (c)<-[:BELONGS_TO]-(ch:Chunk {source_type: 'doc'})-[:BELONGS_TO]->(src:Source)
OPTIONAL MATCH (c)<-[:TOUCHES]-(:ActivitySignal)-[:REPORTS]->()
OPTIONAL MATCH (i:Issue)-[:TOUCHES]->(c)
OPTIONAL MATCH (p:PR)-[:TOUCHES]->(c)
OPTIONAL MATCH (c)<-[:BELONGS_TO]-(:Chunk {source_type: 'chat'})-[:BELONGS_TO]->(chatSrc:Source {source_type: 'chat'})
OPTIONAL MATCH (a:CodeArtifact {component: $id})
RETURN collect(DISTINCT src.source_id) AS docs,
       collect(DISTINCT i.id) AS issues,
       collect(DISTINCT p.id) AS prs,
       collect(DISTINCT chatSrc.source_id) AS chats,
       collect(DISTINCT a.artifact_id) AS apis`

	rows, err := s.RunQuery(ctx, cypher, map[string]any{"id": componentID})
	if err != nil || len(rows) == 0 {
		return n, nil
	}
	row := rows[0]
	n.DocIDs = stringsProp(row, "docs")
	n.IssueIDs = stringsProp(row, "issues")
	n.PRIDs = stringsProp(row, "prs")
	n.ChatThreadIDs = stringsProp(row, "chats")
	n.APIIDs = stringsProp(row, "apis")
	return n, nil
}

// GetAPIImpact returns the components, docs, touching PRs, and 2-hop
// downstream components affected by a code artifact (typically an API
// endpoint).
func (s *Service) GetAPIImpact(ctx context.Context, apiID string) (APIImpact, error) {
	impact := APIImpact{APIID: apiID}
	if !s.IsConfigured() {
		return impact, nil
	}

	const cypher = `
MATCH (a:CodeArtifact {artifact_id: $id})
OPTIONAL MATCH (c:Component {id: a.component})
OPTIONAL MATCH (c)<-[:BELONGS_TO]-(:Chunk {source_type: 'doc'})-[:BELONGS_TO]->(src:Source)
OPTIONAL MATCH (p:PR)-[:TOUCHES]->(c)
OPTIONAL MATCH (c)-[*1..2]-(down:Component)
WHERE down.id IS NULL OR down.id <> c.id
RETURN collect(DISTINCT c.id) AS components,
       collect(DISTINCT src.source_id) AS docs,
       collect(DISTINCT p.id) AS prs,
       collect(DISTINCT down.id) AS downstream`

	rows, err := s.RunQuery(ctx, cypher, map[string]any{"id": apiID})
	if err != nil || len(rows) == 0 {
		return impact, nil
	}
	row := rows[0]
	impact.Components = stringsProp(row, "components")
	impact.Docs = stringsProp(row, "docs")
	impact.TouchingPRs = stringsProp(row, "prs")
	impact.DownstreamIDs = stringsProp(row, "downstream")
	return impact, nil
}
