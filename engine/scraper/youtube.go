package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultYouTubeChannels lists known automotive repair channels, used as
// the channel scope when a caller doesn't supply its own.
var DefaultYouTubeChannels = []string{
	"ChrisFix", "ScottyKilmer", "SouthMainAutoRepairAvoca",
	"EricTheCarGuy", "RainmanRaysRepairs", "1AAuto", "BleepinJeep",
}

// YouTubeScraper looks up metadata for automotive repair videos by ID
// against the YouTube Data API.
type YouTubeScraper struct {
	apiKey      string
	channels    []string
	rateLimiter *rate.Limiter
	httpClient  *http.Client
}

// NewYouTubeScraper creates a scraper with the given API key.
func NewYouTubeScraper(apiKey string, channels []string) *YouTubeScraper {
	if len(channels) == 0 {
		channels = DefaultYouTubeChannels
	}
	return &YouTubeScraper{
		apiKey:      apiKey,
		channels:    channels,
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// VideoMeta holds video metadata from the videos.list API.
type VideoMeta struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Channel     string    `json:"channel"`
	ChannelID   string    `json:"channel_id"`
	PublishedAt time.Time `json:"published_at"`
}

// videosResponse is the YouTube Data API v3 videos.list response.
type videosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			ChannelID    string `json:"channelId"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// ErrVideoNotFound is returned when a videoID has no matching metadata.
var ErrVideoNotFound = fmt.Errorf("video not found")

// ErrQuotaExhausted is returned when YouTube API quota is exceeded.
var ErrQuotaExhausted = fmt.Errorf("youtube API quota exhausted")

// FetchVideoByID looks up a single video's metadata by ID, for callers
// that already know which videos to ingest rather than discovering them
// through search.
func (s *YouTubeScraper) FetchVideoByID(ctx context.Context, videoID string) (VideoMeta, error) {
	if s.apiKey == "" {
		return VideoMeta{}, fmt.Errorf("YouTube API key required for metadata lookup")
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return VideoMeta{}, err
	}

	params := url.Values{
		"part": {"snippet"},
		"id":   {videoID},
		"key":  {s.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/youtube/v3/videos?"+params.Encode(), nil)
	if err != nil {
		return VideoMeta{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return VideoMeta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 403 {
		return VideoMeta{}, ErrQuotaExhausted
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VideoMeta{}, err
	}

	var vr videosResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return VideoMeta{}, err
	}
	if len(vr.Items) == 0 {
		return VideoMeta{}, ErrVideoNotFound
	}

	item := vr.Items[0]
	pub, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	return VideoMeta{
		VideoID:     videoID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Channel:     item.Snippet.ChannelTitle,
		ChannelID:   item.Snippet.ChannelID,
		PublishedAt: pub,
	}, nil
}
