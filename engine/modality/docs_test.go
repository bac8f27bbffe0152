package modality

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sentineleng/sentinel/engine/chunk"
)

func TestWindowedChunksOverlap(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := windowedChunks(chunk.SourceDoc, "f.md", text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > docWindowChars {
			t.Fatalf("window exceeds max chars: %d", len(c.Text))
		}
	}
	firstEnd, _ := chunks[0].Metadata[chunk.MetaEndOffset].(int)
	secondStart, _ := chunks[1].Metadata[chunk.MetaStartOffset].(int)
	if secondStart >= firstEnd {
		t.Fatalf("expected overlap: first end %d, second start %d", firstEnd, secondStart)
	}
}

func TestWindowedChunksEmptyText(t *testing.T) {
	if chunks := windowedChunks(chunk.SourceDoc, "f.md", "   "); chunks != nil {
		t.Fatalf("expected nil for blank text, got %v", chunks)
	}
}

func TestFileHandlerRespectsExtensionFilter(t *testing.T) {
	h := NewDocsHandler(FileConfig{Enabled: true, Extensions: []string{".md"}}, nil, nil, nil)
	if !h.extensionAllowed("a/b.md") {
		t.Fatalf("expected .md allowed")
	}
	if h.extensionAllowed("a/b.go") {
		t.Fatalf("expected .go disallowed")
	}
}

func TestFileHandlerIngestWalksRoots(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.md"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	h := NewDocsHandler(FileConfig{Enabled: true, Roots: []string{dir}}, nil, nil, nil)
	counts, err := h.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if counts.ItemsSeen != 1 || counts.ChunksWritten != 1 {
		t.Fatalf("expected 1 item/chunk, got %+v", counts)
	}
}

func TestFileHandlerDisabledSkipsIngest(t *testing.T) {
	h := NewDocsHandler(FileConfig{Enabled: false}, nil, nil, nil)
	counts, err := h.Ingest(context.Background(), nil)
	if err != nil || counts != (Counts{}) {
		t.Fatalf("expected no-op, got %+v, %v", counts, err)
	}
}

func TestDocsAndFilesHandlersUseDistinctSourceTypes(t *testing.T) {
	docs := NewDocsHandler(FileConfig{}, nil, nil, nil)
	files := NewFilesHandler(FileConfig{}, nil, nil, nil)
	if docs.sourceType == files.sourceType {
		t.Fatalf("expected distinct source types for docs vs files handlers")
	}
	if docs.ModalityID() != Docs || files.ModalityID() != Files {
		t.Fatalf("unexpected modality IDs: %v, %v", docs.ModalityID(), files.ModalityID())
	}
}
