package graph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config configures the Graph Service. The service is disabled when any
// credential is missing.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Enabled reports whether the config has every credential the backend needs.
func (c Config) Enabled() bool {
	return c.URI != "" && c.Username != "" && c.Password != ""
}

// QueryMetadata records the outcome of the most recent read, surfaced to
// status output rather than propagated as an error.
type QueryMetadata struct {
	LastError string
	Disabled  bool
}

// Service is the Graph Service. When unconfigured, every read returns an
// empty structured summary and every write is a no-op; errors are recorded
// in LastQueryMetadata instead of propagating.
type Service struct {
	driver neo4j.DriverWithContext
	db     string
	log    *slog.Logger

	mu   sync.Mutex
	meta QueryMetadata
}

// New builds a Graph Service from a config. A disabled config yields a
// Service with a nil driver; every operation becomes a safe no-op.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled() {
		return &Service{log: log, meta: QueryMetadata{Disabled: true}}, nil
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return &Service{log: log, meta: QueryMetadata{Disabled: true, LastError: err.Error()}}, nil
	}
	return &Service{driver: driver, db: cfg.Database, log: log}, nil
}

// IsConfigured reports whether the service has a live backend.
func (s *Service) IsConfigured() bool {
	return s.driver != nil
}

// Close releases the underlying driver.
func (s *Service) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// LastQueryMetadata returns the most recent failure, if any.
func (s *Service) LastQueryMetadata() QueryMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *Service) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.meta.LastError = err.Error()
	}
}

func (s *Service) session(ctx context.Context) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{}
	if s.db != "" {
		cfg.DatabaseName = s.db
	}
	return s.driver.NewSession(ctx, cfg)
}

// RunWrite runs a parameterized write query and returns the write summary's
// node/relationship creation counters. A no-op when unconfigured.
func (s *Service) RunWrite(ctx context.Context, cypher string, params map[string]any) (created int, err error) {
	if !s.IsConfigured() {
		return 0, nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		s.recordErr(err)
		s.log.Warn("graph: write failed", "error", err)
		return 0, nil
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		s.recordErr(err)
		return 0, nil
	}
	counters := summary.Counters()
	return counters.NodesCreated() + counters.RelationshipsCreated(), nil
}

// RunQuery runs a parameterized read query, returning records keyed by
// their return names. Returns an empty slice (never an error) when
// unconfigured or on failure.
func (s *Service) RunQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if !s.IsConfigured() {
		return nil, nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		s.recordErr(err)
		s.log.Warn("graph: query failed", "error", err)
		return nil, nil
	}

	var out []map[string]any
	for result.Next(ctx) {
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for _, k := range rec.Keys {
			v, _ := rec.Get(k)
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// merge runs an idempotent MERGE-and-SET upsert keyed by idKey, combining
// typed properties with any free-form properties stored under a "prop_"
// prefix, matching the teacher's property convention.
func (s *Service) merge(ctx context.Context, label, idKey string, id any, props map[string]any) error {
	if !s.IsConfigured() {
		return nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := "MERGE (n:" + label + " {" + idKey + ": $id}) SET n += $props"
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id, "props": props})
	if err != nil {
		s.recordErr(err)
		s.log.Warn("graph: upsert failed", "label", label, "error", err)
	}
	return nil
}

// link creates an idempotent directed relationship between two nodes
// identified by label+idKey+id pairs. Both endpoints are MERGEd (not
// MATCHed) so a link can create a placeholder node for an ID that hasn't
// been upserted with its full properties yet — e.g. a Component referenced
// only by an ActivitySignal's file-path resolution.
func (s *Service) link(ctx context.Context, fromLabel, fromKey string, fromID any, relType, toLabel, toKey string, toID any) error {
	if !s.IsConfigured() {
		return nil
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := "MERGE (a:" + fromLabel + " {" + fromKey + ": $from}) " +
		"MERGE (b:" + toLabel + " {" + toKey + ": $to}) " +
		"MERGE (a)-[:" + sanitizeRelType(relType) + "]->(b)"
	_, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		s.recordErr(err)
		s.log.Warn("graph: link failed", "rel", relType, "error", err)
	}
	return nil
}

// sanitizeRelType ensures the relationship type is a valid Cypher identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func stringsProp(row map[string]any, key string) []string {
	v, ok := row[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
