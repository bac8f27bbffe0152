package modality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
	"github.com/sentineleng/sentinel/engine/graph"
	"github.com/sentineleng/sentinel/engine/vector"
)

// ChatMessage is the narrow shape the chat handler needs from the external
// chat API; the API itself is an out-of-scope collaborator.
type ChatMessage struct {
	ChannelID string
	ThreadTS  string
	Author    string
	Timestamp time.Time
	Text      string
	Permalink string
}

// ChatSource is the external collaborator behind the chat handler.
type ChatSource interface {
	FetchMessages(ctx context.Context, channelID string, sinceTS time.Time) ([]ChatMessage, error)
}

// ChatConfig is the handler's declarative configuration.
type ChatConfig struct {
	Enabled    bool
	Weight     float64
	TimeoutMs  int
	MaxResults int
	Channels   []string
}

// ChatState tracks per-channel ingest checkpoints, persisted by the
// Modality Registry.
type ChatState struct {
	LastIndexedTS map[string]time.Time
}

// ChatHandler implements the chat modality.
type ChatHandler struct {
	cfg    ChatConfig
	source ChatSource
	vec    *vector.Service
	g      *graph.Service
	state  ChatState
	log    *slog.Logger
}

// NewChatHandler builds the chat modality handler.
func NewChatHandler(cfg ChatConfig, source ChatSource, vec *vector.Service, g *graph.Service, log *slog.Logger) *ChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatHandler{cfg: cfg, source: source, vec: vec, g: g, state: ChatState{LastIndexedTS: map[string]time.Time{}}, log: log}
}

func (h *ChatHandler) ModalityID() ID { return Chat }
func (h *ChatHandler) CanIngest() bool { return h.cfg.Enabled && h.source != nil }
func (h *ChatHandler) CanQuery() bool  { return h.cfg.Enabled }

// Ingest pulls new messages per configured channel and writes chunks.
func (h *ChatHandler) Ingest(ctx context.Context, scopeOverride map[string]any) (Counts, error) {
	var counts Counts
	if !h.CanIngest() {
		return counts, nil
	}

	channels := h.cfg.Channels
	if override, ok := scopeOverride["channels"].([]string); ok && len(override) > 0 {
		channels = override
	}

	var chunks []chunk.Chunk
	for _, channelID := range channels {
		since := h.state.LastIndexedTS[channelID]
		msgs, err := h.source.FetchMessages(ctx, channelID, since)
		if err != nil {
			counts.Errors++
			h.log.Warn("chat: fetch failed", "channel", channelID, "error", err)
			continue
		}
		for _, m := range msgs {
			counts.ItemsSeen++
			chunks = append(chunks, chatChunk(m))
			if m.Timestamp.After(h.state.LastIndexedTS[channelID]) {
				h.state.LastIndexedTS[channelID] = m.Timestamp
			}
		}
	}

	if len(chunks) == 0 {
		return counts, nil
	}
	if h.vec != nil {
		if _, err := h.vec.IndexChunks(ctx, chunks); err != nil {
			return counts, fmt.Errorf("chat: index chunks: %w", err)
		}
	}
	if h.g != nil {
		for _, c := range chunks {
			channelID, _ := c.Metadata[chunk.MetaSourceID].(string)
			_ = h.g.UpsertSource(ctx, graph.Source{SourceID: channelID, SourceType: "chat"})
			_ = h.g.UpsertChunk(ctx, graph.Chunk{
				ChunkID:    c.ChunkID,
				EntityID:   c.EntityID,
				SourceType: string(c.SourceType),
				SourceID:   channelID,
				Timestamp:  c.Timestamp,
			})
			threadTS, _ := c.Metadata["thread_ts"].(string)
			author, _ := c.Metadata["author"].(string)
			_ = h.g.UpsertActivitySignal(ctx, graph.ActivitySignal{
				ID:         "activity:chat:" + c.EntityID,
				ChannelID:  channelID,
				Weight:     1.0,
				Kind:       "chat",
				ThreadTS:   threadTS,
				Author:     author,
				OccurredAt: c.Timestamp,
			})
		}
	}
	counts.ChunksWritten = len(chunks)
	return counts, nil
}

func chatChunk(m ChatMessage) chunk.Chunk {
	header := fmt.Sprintf("#%s | %s | %s", m.ChannelID, m.Author, m.Timestamp.Format(time.RFC3339))
	text := header + "\n" + m.Text
	entityID := chunk.EntityID("chat", fmt.Sprintf("%s:%s", m.ChannelID, m.ThreadTS))
	ts := m.Timestamp
	return chunk.Chunk{
		ChunkID:    entityID,
		EntityID:   entityID,
		SourceType: chunk.SourceChat,
		Text:       chunk.Clamp(text),
		Timestamp:  &ts,
		Tags:       []string{"chat", m.ChannelID},
		Metadata: map[string]any{
			chunk.MetaSourceID: m.ChannelID,
			"thread_ts":        m.ThreadTS,
			"permalink":        m.Permalink,
			"author":           m.Author,
		},
	}
}

// Query searches the chat modality by semantic similarity, scoped to chat chunks.
func (h *ChatHandler) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() || h.vec == nil {
		return nil, nil
	}
	hits, err := h.vec.SemanticSearch(ctx, text, vector.SearchOptions{
		TopK:        limit,
		SourceTypes: []chunk.SourceType{chunk.SourceChat},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		channelToken := ""
		if len(hit.Chunk.Tags) > 1 {
			channelToken = hit.Chunk.Tags[1]
		}
		title := strings.TrimSpace("#" + channelToken)
		out = append(out, Result{
			Modality:  Chat,
			Source:    chunk.SourceChat,
			ChunkID:   hit.Chunk.ChunkID,
			EntityID:  hit.Chunk.EntityID,
			Title:     title,
			Text:      hit.Chunk.Text,
			RawScore:  hit.Score,
			Score:     Weighted(hit.Score, h.cfg.Weight),
			URL:       fmt.Sprint(hit.Chunk.Metadata["permalink"]),
			Metadata:  hit.Chunk.Metadata,
		})
	}
	return out, nil
}
