package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPReranker talks to a cross-encoder server exposing POST /rerank with a
// {"query", "texts"} body and a [{"index", "score"}] response, as served by
// text-embeddings-inference.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPReranker(baseURL, model string) *HTTPReranker {
	return &HTTPReranker{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (h *HTTPReranker) Rerank(ctx context.Context, req RerankRequest) ([]float64, ProviderInfo, error) {
	info := ProviderInfo{Name: "http-rerank", Model: h.model}
	if len(req.Passages) == 0 {
		return nil, info, nil
	}
	payload, err := json.Marshal(map[string]any{
		"query":    req.Query,
		"texts":    req.Passages,
		"model":    h.model,
		"truncate": true,
	})
	if err != nil {
		return nil, info, fmt.Errorf("encode rerank request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, info, fmt.Errorf("build rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, info, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, fmt.Errorf("rerank error %d: %s", resp.StatusCode, string(body))
	}
	var parsed []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode rerank response: %w", err)
	}
	scores := make([]float64, len(req.Passages))
	seen := make([]bool, len(req.Passages))
	for _, p := range parsed {
		if p.Index < 0 || p.Index >= len(scores) {
			return nil, info, fmt.Errorf("rerank index %d out of range", p.Index)
		}
		scores[p.Index] = p.Score
		seen[p.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, info, fmt.Errorf("rerank response missing passage %d", i)
		}
	}
	return scores, info, nil
}

// Rerank scores passages with the configured reranker. ok is false when
// reranking is disabled.
func (m *Manager) Rerank(ctx context.Context, query string, passages []string) (scores []float64, ok bool, err error) {
	if m.reranker == nil {
		return nil, false, nil
	}
	scores, _, err = m.reranker.Rerank(ctx, RerankRequest{Query: query, Passages: passages})
	if err != nil {
		return nil, true, err
	}
	if len(scores) != len(passages) {
		return nil, true, fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(passages))
	}
	return scores, true, nil
}
