package modality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentineleng/sentinel/pkg/fn"
)

func TestVideoTranscriptChunksWindowsByChars(t *testing.T) {
	var segs []TranscriptSegment
	for i := 0; i < 50; i++ {
		segs = append(segs, TranscriptSegment{StartSeconds: float64(i) * 3, Text: "word word word word word"})
	}
	meta := VideoMeta{VideoID: "v1", URL: "https://youtu.be/v1", PublishedAt: time.Now()}
	chunks := videoTranscriptChunks(meta, segs)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > videoWindowChars+1 {
			t.Fatalf("window exceeds max chars: %d", len(c.Text))
		}
	}
}

func TestVideoTranscriptChunksEmpty(t *testing.T) {
	if chunks := videoTranscriptChunks(VideoMeta{}, nil); chunks != nil {
		t.Fatalf("expected nil for no segments")
	}
}

type fakeVideoSource struct {
	meta        VideoMeta
	segs        []TranscriptSegment
	blockedOnce bool
	attempted   int
}

func (f *fakeVideoSource) FetchMetadata(_ context.Context, _ string) (VideoMeta, error) {
	return f.meta, nil
}

func (f *fakeVideoSource) FetchTranscript(_ context.Context, _ string) ([]TranscriptSegment, error) {
	f.attempted++
	if f.blockedOnce && f.attempted == 1 {
		return nil, errors.New("captcha challenge")
	}
	return f.segs, nil
}

func (f *fakeVideoSource) ClassifyTranscriptError(err error) error {
	if err == nil {
		return nil
	}
	return ErrBotBlocked
}

func TestVideoHandlerRetriesOnBotBlock(t *testing.T) {
	src := &fakeVideoSource{
		meta:        VideoMeta{VideoID: "v1", URL: "https://youtu.be/v1"},
		segs:        []TranscriptSegment{{StartSeconds: 0, Text: "hello there"}},
		blockedOnce: true,
	}
	h := NewVideoHandler(VideoConfig{
		Enabled:   true,
		Weight:    1,
		VideoIDs:  []string{"v1"},
		RetryOpts: fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	}, src, nil, nil, nil)

	counts, err := h.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if src.attempted != 2 {
		t.Fatalf("expected a retry after bot block, attempted=%d", src.attempted)
	}
	if counts.ChunksWritten != 1 {
		t.Fatalf("expected chunk written after retry succeeds, got %+v", counts)
	}
}

func TestVideoHandlerDisabledSkipsIngest(t *testing.T) {
	h := NewVideoHandler(VideoConfig{Enabled: false}, &fakeVideoSource{}, nil, nil, nil)
	counts, err := h.Ingest(context.Background(), nil)
	if err != nil || counts != (Counts{}) {
		t.Fatalf("expected no-op, got %+v, %v", counts, err)
	}
}
