package scraper

import (
	"context"
	"strings"

	"github.com/sentineleng/sentinel/engine/modality"
)

// YouTubeVideoSource adapts YouTubeScraper's search/metadata/transcript
// fetch to modality.VideoSource, so the video modality can ingest from a
// real API key instead of only querying pre-indexed chunks.
type YouTubeVideoSource struct {
	s *YouTubeScraper
}

// NewYouTubeVideoSource builds a video source backed by the given API key.
func NewYouTubeVideoSource(apiKey string) *YouTubeVideoSource {
	return &YouTubeVideoSource{s: NewYouTubeScraper(apiKey, nil)}
}

func (y *YouTubeVideoSource) FetchMetadata(ctx context.Context, videoID string) (modality.VideoMeta, error) {
	meta, err := y.s.FetchVideoByID(ctx, videoID)
	if err != nil {
		return modality.VideoMeta{}, err
	}
	return modality.VideoMeta{
		VideoID:     meta.VideoID,
		Title:       meta.Title,
		ChannelID:   meta.ChannelID,
		ChannelName: meta.Channel,
		PublishedAt: meta.PublishedAt,
		URL:         "https://www.youtube.com/watch?v=" + videoID,
	}, nil
}

func (y *YouTubeVideoSource) FetchTranscript(ctx context.Context, videoID string) ([]modality.TranscriptSegment, error) {
	segs, err := FetchTranscriptSegments(ctx, y.s.httpClient, videoID)
	if err != nil {
		return nil, err
	}
	out := make([]modality.TranscriptSegment, len(segs))
	for i, s := range segs {
		out[i] = modality.TranscriptSegment{StartSeconds: s.StartSeconds, Text: s.Text}
	}
	return out, nil
}

// ClassifyTranscriptError maps an innertube fetch failure onto
// modality.ErrBotBlocked when the response looks like an anti-bot
// challenge (rate-limited or access-denied) rather than a video that
// genuinely has no captions.
func (y *YouTubeVideoSource) ClassifyTranscriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status=429") || strings.Contains(msg, "status=403") {
		return modality.ErrBotBlocked
	}
	return err
}
