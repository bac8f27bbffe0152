package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// wireClient speaks the vector backend's literal HTTP/JSON REST contract
// directly, the same way pkg/ollama.EmbedClient and the teacher's
// cmd/api queryQdrant helper talk to an HTTP-JSON backend rather than a
// generated gRPC client.
type wireClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newWireClient(baseURL, apiKey string, hc *http.Client) *wireClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &wireClient{baseURL: baseURL, apiKey: apiKey, http: hc}
}

func (w *wireClient) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("vector: marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("vector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("api-key", w.apiKey)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vector: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("vector: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type collectionsListResp struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

// hasCollection reports whether name already exists, without recreating it.
func (w *wireClient) hasCollection(ctx context.Context, name string) (bool, error) {
	var out collectionsListResp
	status, err := w.do(ctx, http.MethodGet, "/collections", nil, &out)
	if err != nil {
		return false, err
	}
	if status >= 300 {
		return false, fmt.Errorf("vector: list collections: status %d", status)
	}
	for _, c := range out.Result.Collections {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

type createCollectionReq struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

func (w *wireClient) createCollection(ctx context.Context, name string, dimension int) error {
	req := createCollectionReq{}
	req.Vectors.Size = dimension
	req.Vectors.Distance = "Cosine"
	status, err := w.do(ctx, http.MethodPut, "/collections/"+name, req, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("vector: create collection %s: status %d", name, status)
	}
	return nil
}

func (w *wireClient) deleteCollection(ctx context.Context, name string) error {
	status, err := w.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("vector: delete collection %s: status %d", name, status)
	}
	return nil
}

type upsertPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertReq struct {
	Points []upsertPoint `json:"points"`
}

func (w *wireClient) upsert(ctx context.Context, collection string, records []Record) error {
	points := make([]upsertPoint, len(records))
	for i, r := range records {
		points[i] = upsertPoint{ID: r.ID, Vector: r.Embedding, Payload: r.Payload}
	}
	status, err := w.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", upsertReq{Points: points}, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("vector: upsert: status %d", status)
	}
	return nil
}

// filterClause mirrors the backend's must-clause filter shape:
// {must:[{key, match:{any|value}} | {key, range:{gte}}]}.
type filterClause struct {
	Must []map[string]any `json:"must,omitempty"`
}

type searchReq struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *filterClause `json:"filter,omitempty"`
}

type searchResp struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (w *wireClient) search(ctx context.Context, collection string, vec []float32, limit int, filter *filterClause) (searchResp, error) {
	var out searchResp
	status, err := w.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", searchReq{
		Vector:      vec,
		Limit:       limit,
		WithPayload: true,
		Filter:      filter,
	}, &out)
	if err != nil {
		return out, err
	}
	if status >= 300 {
		return out, fmt.Errorf("vector: search: status %d", status)
	}
	return out, nil
}
