package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider embeds with the Google generative AI embedding models.
// The client is created on first use.
type GeminiProvider struct {
	keyName string
	apiKey  string
	model   string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	model := strings.TrimSpace(os.Getenv("DOCSEARCH_GEMINI_EMBED_MODEL"))
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiProvider{keyName: keyName, apiKey: resolveGeminiKey(keyName), model: model}
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
	if g.apiKey == "" {
		return nil, info, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, info, err
	}
	em := client.EmbeddingModel(g.model)
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, info, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return nil, info, fmt.Errorf("gemini returned empty embedding")
		}
		out = append(out, res.Embedding.Values)
	}
	return out, info, nil
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	c, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = c
	return c, nil
}

func (g *GeminiProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if k := os.Getenv("DOCSEARCH_GEMINI_KEY_" + sanitizeEnvToken(alias)); k != "" {
			return k
		}
	}
	return os.Getenv("GEMINI_API_KEY")
}
