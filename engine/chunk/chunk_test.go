package chunk

import (
	"strings"
	"testing"
)

func TestClampShortTextUnchanged(t *testing.T) {
	s := "hello world"
	if got := Clamp(s); got != s {
		t.Fatalf("Clamp(%q) = %q, want unchanged", s, got)
	}
}

func TestClampLongTextExactLength(t *testing.T) {
	s := strings.Repeat("a", MaxTextLen+500)
	got := Clamp(s)
	if len(got) != MaxTextLen {
		t.Fatalf("len(Clamp(s)) = %d, want %d", len(got), MaxTextLen)
	}
	if !strings.HasSuffix(got, ellipsis) {
		t.Fatalf("Clamp(s) = %q, want ellipsis suffix", got)
	}
}

func TestClampIdempotentOnIngestAndSearchPaths(t *testing.T) {
	s := strings.Repeat("x", MaxTextLen*2)
	a := Clamp(s)
	b := Clamp(s)
	if a != b {
		t.Fatalf("Clamp not deterministic: %q != %q", a, b)
	}
}

func TestDerivePointIDDeterministic(t *testing.T) {
	id := "doc:runbooks/oncall.md"
	a := DerivePointID(id)
	b := DerivePointID(id)
	if a != b {
		t.Fatalf("DerivePointID not deterministic: %s != %s", a, b)
	}
}

func TestDerivePointIDPassesThroughUUID(t *testing.T) {
	u := "550e8400-e29b-41d4-a716-446655440000"
	if got := DerivePointID(u); got != u {
		t.Fatalf("DerivePointID(%s) = %s, want passthrough", u, got)
	}
}

func TestValidEntityID(t *testing.T) {
	cases := map[string]bool{
		"component:brake_controller": true,
		"doc:readme.md":              true,
		"no-colon-here":              false,
		"":                           false,
	}
	for id, want := range cases {
		if got := ValidEntityID(id); got != want {
			t.Errorf("ValidEntityID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestEmptyChunk(t *testing.T) {
	c := Chunk{Text: "   "}
	if !c.Empty() {
		t.Fatal("expected whitespace-only chunk to be Empty")
	}
	c.Text = "content"
	if c.Empty() {
		t.Fatal("expected non-blank chunk to not be Empty")
	}
}
