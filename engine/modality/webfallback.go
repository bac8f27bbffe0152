package modality

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sentineleng/sentinel/engine/chunk"
)

// WebFallbackConfig is the handler's declarative configuration.
type WebFallbackConfig struct {
	Enabled     bool
	Weight      float64
	TimeoutMs   int
	MaxResults  int
	SearchURL   string // e.g. a self-hosted SearXNG instance
	HTTPClient  *http.Client
}

// WebFallbackHandler is consulted only when the primary fanout returns zero
// results: it issues a live web search rather than querying the index.
// can_ingest is always false — there is nothing to ingest into.
type WebFallbackHandler struct {
	cfg    WebFallbackConfig
	client *http.Client
}

// NewWebFallbackHandler builds the web-fallback modality handler.
func NewWebFallbackHandler(cfg WebFallbackConfig) *WebFallbackHandler {
	client := cfg.HTTPClient
	if client == nil {
		timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebFallbackHandler{cfg: cfg, client: client}
}

func (h *WebFallbackHandler) ModalityID() ID  { return WebFallback }
func (h *WebFallbackHandler) CanIngest() bool { return false }
func (h *WebFallbackHandler) CanQuery() bool  { return h.cfg.Enabled && h.cfg.SearchURL != "" }

// Ingest is a no-op: web fallback has no index of its own.
func (h *WebFallbackHandler) Ingest(_ context.Context, _ map[string]any) (Counts, error) {
	return Counts{}, nil
}

type webSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type webSearchResponse struct {
	Results []webSearchResult `json:"results"`
}

// Query issues a live web search. Only meant to be invoked when every other
// modality's fanout came back empty.
func (h *WebFallbackHandler) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if !h.CanQuery() {
		return nil, nil
	}

	q := url.Values{"q": {text}, "format": {"json"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.SearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	maxResults := limit
	if h.cfg.MaxResults > 0 && (maxResults <= 0 || h.cfg.MaxResults < maxResults) {
		maxResults = h.cfg.MaxResults
	}

	out := make([]Result, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		if maxResults > 0 && i >= maxResults {
			break
		}
		entityID := chunk.EntityID("web", r.URL)
		out = append(out, Result{
			Modality: WebFallback,
			Source:   chunk.SourceWeb,
			EntityID: entityID,
			Title:    r.Title,
			Text:     strings.TrimSpace(r.Content),
			RawScore: 1.0 / float64(i+1), // rank-based, no embedding similarity available
			Score:    Weighted(1.0/float64(i+1), h.cfg.Weight),
			URL:      r.URL,
		})
	}
	return out, nil
}
