package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type RerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// RerankProvider returns one relevance score per passage, in passage order.
type RerankProvider interface {
	Rerank(ctx context.Context, req RerankRequest) ([]float64, ProviderInfo, error)
}
