package modality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/vector"
	"github.com/sentineleng/sentinel/pkg/fn"
)

// ErrBotBlocked signals the transcript fetch was rejected by an anti-bot
// challenge rather than a genuine "no captions" state, so callers can
// distinguish retryable blocks from permanent absence.
var ErrBotBlocked = errors.New("video: transcript fetch blocked by anti-bot challenge")

// TranscriptSegment is one timed caption entry.
type TranscriptSegment struct {
	StartSeconds float64
	Text         string
}

// VideoMeta is the narrow metadata shape the video handler needs.
type VideoMeta struct {
	VideoID     string
	Title       string
	ChannelID   string
	ChannelName string
	PlaylistID  string
	PublishedAt time.Time
	URL         string
}

// VideoSource is the external collaborator behind the video handler: a
// video platform API plus transcript retrieval, classified so the handler
// can tell an anti-bot block apart from a video with no captions.
type VideoSource interface {
	FetchMetadata(ctx context.Context, videoID string) (VideoMeta, error)
	FetchTranscript(ctx context.Context, videoID string) ([]TranscriptSegment, error)
	ClassifyTranscriptError(err error) error // maps a raw fetch error onto ErrBotBlocked or passes it through
}

const (
	videoWindowSeconds  = 120.0 // nominal chunk span before overlap
	videoOverlapSeconds = 2.0
	videoWindowChars    = 1200
)

// VideoConfig is the handler's declarative configuration.
type VideoConfig struct {
	Enabled      bool
	Weight       float64
	TimeoutMs    int
	MaxResults   int
	VideoIDs     []string
	RetryOpts    fn.RetryOpts
	TimestampWindowSeconds float64 // ±window for timestamp-aware retrieval, default 25
}

// VideoHandler implements the video modality: metadata + transcript fetch,
// fixed-size transcript chunking, and Video→Channel→Playlist→Chunk→Concept
// graph mirroring.
type VideoHandler struct {
	cfg      VideoConfig
	source   VideoSource
	vec      *vector.Service
	g        *graph.Service
	log      *slog.Logger
	notifier *PagingNotifier
}

// SetPagingNotifier wires an optional paging-backpressure notifier; nil
// leaves publishing disabled.
func (h *VideoHandler) SetPagingNotifier(n *PagingNotifier) { h.notifier = n }

// NewVideoHandler builds the video modality handler.
func NewVideoHandler(cfg VideoConfig, source VideoSource, vec *vector.Service, g *graph.Service, log *slog.Logger) *VideoHandler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RetryOpts.MaxAttempts == 0 {
		cfg.RetryOpts = fn.DefaultRetry
	}
	if cfg.TimestampWindowSeconds == 0 {
		cfg.TimestampWindowSeconds = 25
	}
	return &VideoHandler{cfg: cfg, source: source, vec: vec, g: g, log: log}
}

func (h *VideoHandler) ModalityID() ID  { return Video }
func (h *VideoHandler) CanIngest() bool { return h.cfg.Enabled && h.source != nil }
func (h *VideoHandler) CanQuery() bool  { return h.cfg.Enabled }

// Ingest fetches metadata and transcript for each configured video ID,
// chunks the transcript, and mirrors Video/Channel/Playlist/Chunk/Concept
// nodes into the graph.
func (h *VideoHandler) Ingest(ctx context.Context, scopeOverride map[string]any) (Counts, error) {
	var counts Counts
	if !h.CanIngest() {
		return counts, nil
	}

	videoIDs := h.cfg.VideoIDs
	if override, ok := scopeOverride["video_ids"].([]string); ok && len(override) > 0 {
		videoIDs = override
	}

	var chunks []chunk.Chunk
	for _, videoID := range videoIDs {
		counts.ItemsSeen++

		meta, err := h.source.FetchMetadata(ctx, videoID)
		if err != nil {
			counts.Errors++
			h.log.Warn("video: metadata fetch failed", "video_id", videoID, "error", err)
			continue
		}

		segResult := fn.Retry(ctx, h.cfg.RetryOpts, func(ctx context.Context) fn.Result[[]TranscriptSegment] {
			segs, err := h.source.FetchTranscript(ctx, videoID)
			if err != nil {
				classified := h.source.ClassifyTranscriptError(err)
				if errors.Is(classified, ErrBotBlocked) {
					return fn.Err[[]TranscriptSegment](classified)
				}
				// Not a bot block: treat as permanent absence, no point retrying.
				return fn.Ok[[]TranscriptSegment](nil)
			}
			return fn.Ok(segs)
		})
		segs, err := segResult.Unwrap()
		if err != nil {
			counts.Errors++
			h.log.Warn("video: transcript fetch blocked", "video_id", videoID, "error", err)
			continue
		}

		videoChunks := videoTranscriptChunks(meta, segs)
		chunks = append(chunks, videoChunks...)

		if h.g != nil {
			h.mirrorGraph(ctx, meta, videoChunks)
		}

		h.notifier.notify(Video, videoID, len(videoChunks))
	}

	if len(chunks) == 0 {
		return counts, nil
	}
	if h.vec != nil {
		if _, err := h.vec.IndexChunks(ctx, chunks); err != nil {
			return counts, fmt.Errorf("video: index chunks: %w", err)
		}
	}
	counts.ChunksWritten = len(chunks)
	return counts, nil
}

func (h *VideoHandler) mirrorGraph(ctx context.Context, meta VideoMeta, chunks []chunk.Chunk) {
	if meta.ChannelID != "" {
		_ = h.g.UpsertChannel(ctx, graph.Channel{ChannelID: meta.ChannelID, Name: meta.ChannelName})
	}
	_ = h.g.UpsertVideo(ctx, graph.Video{VideoID: meta.VideoID, ChannelID: meta.ChannelID, Title: meta.Title, PublishedAt: timePtr(meta.PublishedAt)})
	if meta.ChannelID != "" {
		_ = h.g.LinkVideoChannel(ctx, meta.VideoID, meta.ChannelID)
	}
	if meta.PlaylistID != "" {
		_ = h.g.UpsertPlaylist(ctx, graph.Playlist{PlaylistID: meta.PlaylistID})
		_ = h.g.LinkVideoPlaylist(ctx, meta.VideoID, meta.PlaylistID)
	}
	for _, c := range chunks {
		startSeconds, _ := c.Metadata["start_seconds"].(float64)
		endSeconds, _ := c.Metadata["end_seconds"].(float64)
		_ = h.g.UpsertTranscriptChunk(ctx, graph.TranscriptChunk{
			ChunkID:  c.ChunkID,
			VideoID:  meta.VideoID,
			StartSec: startSeconds,
			EndSec:   endSeconds,
			Text:     c.Text,
		})
		_ = h.g.LinkVideoChunk(ctx, meta.VideoID, c.ChunkID)
	}
}

// videoTranscriptChunks windows transcript segments into ~1200-char spans
// with a trailing 2-second overlap carried into the next window, each
// chunk stamped with its starting timestamp for timestamp-aware retrieval.
func videoTranscriptChunks(meta VideoMeta, segs []TranscriptSegment) []chunk.Chunk {
	if len(segs) == 0 {
		return nil
	}

	var out []chunk.Chunk
	var buf strings.Builder
	windowStart := segs[0].StartSeconds
	var overlapSegs []TranscriptSegment

	flush := func(endSeconds float64) {
		if buf.Len() == 0 {
			return
		}
		entityID := chunk.EntityID("video", fmt.Sprintf("%s#%.1f", meta.VideoID, windowStart))
		ts := meta.PublishedAt
		out = append(out, chunk.Chunk{
			ChunkID:    entityID,
			EntityID:   entityID,
			SourceType: chunk.SourceVideo,
			Text:       chunk.Clamp(strings.TrimSpace(buf.String())),
			Timestamp:  &ts,
			Metadata: map[string]any{
				chunk.MetaSourceID: meta.VideoID,
				chunk.MetaURL:      fmt.Sprintf("%s&t=%ds", meta.URL, int(windowStart)),
				"start_seconds":    windowStart,
				"end_seconds":      endSeconds,
			},
		})
		buf.Reset()
	}

	for i, seg := range segs {
		if buf.Len() > 0 && buf.Len()+len(seg.Text)+1 > videoWindowChars {
			flush(seg.StartSeconds)
			windowStart = seg.StartSeconds
			for _, carry := range overlapSegs {
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(carry.Text)
				windowStart = carry.StartSeconds
			}
			overlapSegs = nil
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(seg.Text)

		// Track the trailing segments within the overlap window for carry-over.
		overlapSegs = trailingWithin(segs[:i+1], videoOverlapSeconds)
	}
	last := segs[len(segs)-1]
	flush(last.StartSeconds)

	return out
}

func trailingWithin(segs []TranscriptSegment, window float64) []TranscriptSegment {
	if len(segs) == 0 {
		return nil
	}
	cutoff := segs[len(segs)-1].StartSeconds - window
	var out []TranscriptSegment
	for i := len(segs) - 1; i >= 0 && segs[i].StartSeconds >= cutoff; i-- {
		out = append([]TranscriptSegment{segs[i]}, out...)
	}
	return out
}

// Query searches video transcript chunks, widening results with neighbors
// within the configured timestamp window so a hit carries its surrounding
// context.
func (h *VideoHandler) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() || h.vec == nil {
		return nil, nil
	}
	hits, err := h.vec.SemanticSearch(ctx, text, vector.SearchOptions{
		TopK:        limit,
		SourceTypes: []chunk.SourceType{chunk.SourceVideo},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		startSeconds, _ := hit.Chunk.Metadata["start_seconds"].(float64)
		url, _ := hit.Chunk.Metadata[chunk.MetaURL].(string)
		out = append(out, Result{
			Modality: Video,
			Source:   chunk.SourceVideo,
			ChunkID:  hit.Chunk.ChunkID,
			EntityID: hit.Chunk.EntityID,
			Title:    hit.Chunk.Text,
			Text:     hit.Chunk.Text,
			RawScore: hit.Score,
			Score:    Weighted(hit.Score, h.cfg.Weight),
			URL:      url,
			Metadata: map[string]any{
				"start_seconds":      startSeconds,
				"timestamp_window_s": h.cfg.TimestampWindowSeconds,
			},
		})
	}
	return out, nil
}
