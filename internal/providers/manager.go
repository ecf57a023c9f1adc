package providers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"docsearch/internal/config"
)

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured embedding providers in declaration order and
// the optional reranker.
type Manager struct {
	embedProviders []NamedEmbedProvider
	reranker       RerankProvider
	dim            int
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{dim: cfg.EmbedDim}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildEmbedProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: p})
	}
	rr, err := buildReranker(cfg)
	if err != nil {
		return nil, err
	}
	m.reranker = rr
	return m, nil
}

// NewManagerWith wires explicit providers; used by tests and embedders of the engine.
func NewManagerWith(dim int, reranker RerankProvider, embed ...NamedEmbedProvider) *Manager {
	return &Manager{embedProviders: embed, reranker: reranker, dim: dim}
}

func (m *Manager) Dimension() int {
	return m.dim
}

func (m *Manager) EmbedProviderByIndex(i int) (EmbeddingProvider, ProviderRef) {
	if len(m.embedProviders) == 0 {
		return NewMockProvider(m.dim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.embedProviders) {
		i = 0
	}
	return m.embedProviders[i].Provider, m.embedProviders[i].Ref
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

// PreferredEmbedOrder lists real providers before mock. The encoder pins the
// first entry; vectors from different models cannot share one index.
func (m *Manager) PreferredEmbedOrder() []int {
	n := len(m.embedProviders)
	if n == 0 {
		return []int{0}
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !strings.EqualFold(m.embedProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if strings.EqualFold(m.embedProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	return out
}

// Reranker returns the configured reranker, or nil when reranking is off.
func (m *Manager) Reranker() RerankProvider {
	return m.reranker
}

// Close releases providers that hold client connections.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.embedProviders {
		if c, ok := p.Provider.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func buildEmbedProvider(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.Option), nil
	case "gemini":
		return NewGeminiProvider(ref.Option), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.Option), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ref.Name)
	}
}

func buildReranker(cfg config.Config) (RerankProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RerankProvider)) {
	case "", "none", "off":
		return nil, nil
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "http":
		if strings.TrimSpace(cfg.RerankURL) == "" {
			return nil, fmt.Errorf("rerank provider http needs DOCSEARCH_RERANK_URL")
		}
		return NewHTTPReranker(cfg.RerankURL, cfg.RerankModel), nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", cfg.RerankProvider)
	}
}
