package graph

import "context"

// NodeCounts returns the number of nodes per label, used by the status
// endpoint and the Performance Monitor snapshot.
func (s *Service) NodeCounts(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	if !s.IsConfigured() {
		return out, nil
	}
	rows, err := s.RunQuery(ctx, `MATCH (n) RETURN labels(n)[0] AS label, count(n) AS cnt`, nil)
	if err != nil {
		return out, nil
	}
	for _, row := range rows {
		label := strProp(row, "label")
		if label == "" {
			continue
		}
		out[label] = intProp(row, "cnt")
	}
	return out, nil
}

// RelationshipCount returns the total number of relationships in the graph.
func (s *Service) RelationshipCount(ctx context.Context) (int, error) {
	if !s.IsConfigured() {
		return 0, nil
	}
	rows, err := s.RunQuery(ctx, `MATCH ()-[r]->() RETURN count(r) AS cnt`, nil)
	if err != nil || len(rows) == 0 {
		return 0, nil
	}
	return intProp(rows[0], "cnt"), nil
}

// TopComponentsByActivity returns the component IDs with the most
// ActivitySignal edges, descending, capped at limit.
func (s *Service) TopComponentsByActivity(ctx context.Context, limit int) ([]string, error) {
	if !s.IsConfigured() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.RunQuery(ctx, `
MATCH (c:Component)<-[:TOUCHES]-(a:ActivitySignal)
RETURN c.id AS id, count(a) AS cnt
ORDER BY cnt DESC
LIMIT $limit`, map[string]any{"limit": limit})
	if err != nil {
		return nil, nil
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, strProp(row, "id"))
	}
	return out, nil
}

func intProp(props map[string]any, key string) int {
	v, ok := props[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
