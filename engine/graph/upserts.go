package graph

import (
	"context"
	"time"
)

func withProps(base map[string]any, free map[string]string) map[string]any {
	for k, v := range free {
		base["prop_"+k] = v
	}
	return base
}

// unixOrZero converts an optional timestamp to a Cypher-storable int64,
// since neo4j-go-driver doesn't marshal a nil *time.Time.
func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

// UpsertChunk mirrors a chunk into the graph and links it to its Source via
// BELONGS_TO, keyed by chunk_id.
func (s *Service) UpsertChunk(ctx context.Context, c Chunk) error {
	props := map[string]any{
		"chunk_id":    c.ChunkID,
		"entity_id":   c.EntityID,
		"source_type": c.SourceType,
		"component":   c.Component,
		"service":     c.Service,
	}
	if err := s.merge(ctx, LabelChunk, "chunk_id", c.ChunkID, props); err != nil {
		return err
	}
	if c.SourceID != "" {
		if err := s.link(ctx, LabelChunk, "chunk_id", c.ChunkID, RelBelongsTo, LabelSource, "source_id", c.SourceID); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSource upserts a Source node, deduped by SourceID.
func (s *Service) UpsertSource(ctx context.Context, src Source) error {
	props := withProps(map[string]any{
		"source_id":    src.SourceID,
		"source_type":  src.SourceType,
		"display_name": src.DisplayName,
		"url":          src.URL,
	}, src.Properties)
	return s.merge(ctx, LabelSource, "source_id", src.SourceID, props)
}

// UpsertPR upserts a pull-request node keyed by ID.
func (s *Service) UpsertPR(ctx context.Context, pr PR) error {
	props := map[string]any{
		"id":          pr.ID,
		"repo":        pr.Repo,
		"number":      pr.Number,
		"title":       pr.Title,
		"files_count": pr.FilesCount,
		"churn":       pr.Churn,
		"labels":      pr.Labels,
		"merged_at":   unixOrZero(pr.MergedAt),
	}
	return s.merge(ctx, LabelPR, "id", pr.ID, props)
}

// UpsertCommit upserts a commit node keyed by SHA.
func (s *Service) UpsertCommit(ctx context.Context, c Commit) error {
	props := map[string]any{
		"sha":         c.SHA,
		"repo":        c.Repo,
		"message":     c.Message,
		"files_count": c.FilesCount,
		"churn":       c.Churn,
		"timestamp":   unixOrZero(c.Timestamp),
	}
	return s.merge(ctx, LabelCommit, "sha", c.SHA, props)
}

// UpsertIssue upserts an issue node keyed by ID.
func (s *Service) UpsertIssue(ctx context.Context, i Issue) error {
	props := map[string]any{
		"id":        i.ID,
		"repo":      i.Repo,
		"title":     i.Title,
		"labels":    i.Labels,
		"comments":   i.Comments,
		"reactions":  i.Reactions,
		"created_at": unixOrZero(i.CreatedAt),
	}
	return s.merge(ctx, LabelIssue, "id", i.ID, props)
}

// UpsertVideo upserts a video node keyed by VideoID.
func (s *Service) UpsertVideo(ctx context.Context, v Video) error {
	props := map[string]any{
		"video_id":   v.VideoID,
		"channel_id": v.ChannelID,
		"title":      v.Title,
	}
	return s.merge(ctx, LabelVideo, "video_id", v.VideoID, props)
}

// UpsertChannel upserts a channel node keyed by ChannelID.
func (s *Service) UpsertChannel(ctx context.Context, c Channel) error {
	props := map[string]any{"channel_id": c.ChannelID, "name": c.Name}
	return s.merge(ctx, LabelChannel, "channel_id", c.ChannelID, props)
}

// UpsertPlaylist upserts a playlist node keyed by PlaylistID.
func (s *Service) UpsertPlaylist(ctx context.Context, p Playlist) error {
	props := map[string]any{"playlist_id": p.PlaylistID, "title": p.Title}
	return s.merge(ctx, LabelPlaylist, "playlist_id", p.PlaylistID, props)
}

// UpsertActivitySignal upserts a weighted activity event and links it to
// whichever of Component/ChannelID is set.
func (s *Service) UpsertActivitySignal(ctx context.Context, a ActivitySignal) error {
	props := map[string]any{
		"id":         a.ID,
		"component":  a.Component,
		"channel_id": a.ChannelID,
		"weight":     a.Weight,
		"kind":        a.Kind,
		"labels":      a.Labels,
		"author":      a.Author,
		"thread_ts":   a.ThreadTS,
		"occurred_at": unixOrZero(a.OccurredAt),
	}
	if err := s.merge(ctx, LabelActivitySignal, "id", a.ID, props); err != nil {
		return err
	}
	if a.Component != "" {
		if err := s.link(ctx, LabelActivitySignal, "id", a.ID, RelTouches, LabelComponent, "id", a.Component); err != nil {
			return err
		}
	}
	if a.ChannelID != "" {
		if err := s.link(ctx, LabelActivitySignal, "id", a.ID, RelTouches, LabelChannel, "channel_id", a.ChannelID); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSupportCase upserts a dissatisfaction-flagged issue record.
func (s *Service) UpsertSupportCase(ctx context.Context, c SupportCase) error {
	props := map[string]any{"id": c.ID, "issue_id": c.IssueID, "labels": c.Labels}
	if err := s.merge(ctx, LabelSupportCase, "id", c.ID, props); err != nil {
		return err
	}
	if c.IssueID != "" {
		if err := s.link(ctx, LabelSupportCase, "id", c.ID, RelReports, LabelIssue, "id", c.IssueID); err != nil {
			return err
		}
	}
	return nil
}

// UpsertConcept upserts a topic/concept node keyed by ConceptID.
func (s *Service) UpsertConcept(ctx context.Context, c Concept) error {
	props := map[string]any{"concept_id": c.ConceptID, "name": c.Name}
	return s.merge(ctx, LabelConcept, "concept_id", c.ConceptID, props)
}

// UpsertCodeArtifact upserts a code-level entity such as an API endpoint.
func (s *Service) UpsertCodeArtifact(ctx context.Context, a CodeArtifact) error {
	props := map[string]any{
		"artifact_id": a.ArtifactID,
		"kind":        a.Kind,
		"name":        a.Name,
		"component":   a.Component,
	}
	return s.merge(ctx, LabelCodeArtifact, "artifact_id", a.ArtifactID, props)
}

// UpsertTranscriptChunk upserts one transcript window of a video.
func (s *Service) UpsertTranscriptChunk(ctx context.Context, t TranscriptChunk) error {
	props := map[string]any{
		"chunk_id":  t.ChunkID,
		"video_id":  t.VideoID,
		"start_sec": t.StartSec,
		"end_sec":   t.EndSec,
	}
	if err := s.merge(ctx, LabelTranscriptChunk, "chunk_id", t.ChunkID, props); err != nil {
		return err
	}
	if t.VideoID != "" {
		if err := s.link(ctx, LabelVideo, "video_id", t.VideoID, RelHasChunk, LabelTranscriptChunk, "chunk_id", t.ChunkID); err != nil {
			return err
		}
	}
	return nil
}

// LinkVideoChannel links a video to its channel.
func (s *Service) LinkVideoChannel(ctx context.Context, videoID, channelID string) error {
	return s.link(ctx, LabelChannel, "channel_id", channelID, RelHasVideo, LabelVideo, "video_id", videoID)
}

// LinkVideoChunk links a video to one of its transcript chunks.
func (s *Service) LinkVideoChunk(ctx context.Context, videoID, chunkID string) error {
	return s.link(ctx, LabelVideo, "video_id", videoID, RelHasChunk, LabelTranscriptChunk, "chunk_id", chunkID)
}

// LinkChunkConcept links a chunk (or transcript chunk) to a mined concept.
func (s *Service) LinkChunkConcept(ctx context.Context, chunkID, conceptID string) error {
	return s.link(ctx, LabelTranscriptChunk, "chunk_id", chunkID, RelAboutTopic, LabelConcept, "concept_id", conceptID)
}

// LinkVideoPlaylist links a video to a playlist it belongs to.
func (s *Service) LinkVideoPlaylist(ctx context.Context, videoID, playlistID string) error {
	return s.link(ctx, LabelVideo, "video_id", videoID, RelInPlaylist, LabelPlaylist, "playlist_id", playlistID)
}
