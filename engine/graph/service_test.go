package graph

import (
	"context"
	"testing"
)

func TestConfigEnabled(t *testing.T) {
	cases := []struct {
		cfg  Config
		want bool
	}{
		{Config{URI: "neo4j://x", Username: "u", Password: "p"}, true},
		{Config{URI: "neo4j://x", Username: "u"}, false},
		{Config{}, false},
	}
	for _, c := range cases {
		if got := c.cfg.Enabled(); got != c.want {
			t.Errorf("Config(%+v).Enabled() = %v, want %v", c.cfg, got, c.want)
		}
	}
}

func TestUnconfiguredServiceIsSafeNoOp(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.IsConfigured() {
		t.Fatal("expected unconfigured service")
	}

	if err := svc.UpsertChunk(ctx, Chunk{ChunkID: "c1"}); err != nil {
		t.Fatalf("UpsertChunk should no-op, got %v", err)
	}

	n, err := svc.GetComponentNeighborhood(ctx, "comp:1")
	if err != nil {
		t.Fatalf("GetComponentNeighborhood: %v", err)
	}
	if n.ComponentID != "comp:1" || len(n.DocIDs) != 0 {
		t.Fatalf("expected empty neighborhood, got %+v", n)
	}

	counts, err := svc.NodeCounts(ctx)
	if err != nil || len(counts) != 0 {
		t.Fatalf("expected empty counts, got %v err=%v", counts, err)
	}
}

func TestSanitizeRelType(t *testing.T) {
	cases := map[string]string{
		"touches":       "TOUCHES",
		"about-topic!!": "ABOUTTOPIC",
		"":              "RELATED_TO",
		"has_chunk":     "HAS_CHUNK",
	}
	for in, want := range cases {
		if got := sanitizeRelType(in); got != want {
			t.Errorf("sanitizeRelType(%q) = %q, want %q", in, got, want)
		}
	}
}
