package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docsearch/internal/logging"
	"docsearch/internal/util"

	"golang.org/x/time/rate"
)

type EncoderConfig struct {
	// RatePerSecond <= 0 means unlimited.
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	Backoff       time.Duration
	Logger        *slog.Logger
}

// Encoder turns one text into one vector of the process-wide dimension. It
// is pinned to a single provider so chunk and query vectors always come from
// the same model. Calls are paced through a token bucket and rate or
// transient failures are retried on that provider only.
type Encoder struct {
	provider    EmbeddingProvider
	ref         ProviderRef
	dim         int
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
}

func NewEncoder(m *Manager, cfg EncoderConfig) *Encoder {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	p, ref := m.EmbedProviderByIndex(m.PreferredEmbedOrder()[0])
	return &Encoder{
		provider:    p,
		ref:         ref,
		dim:         m.Dimension(),
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: attempts,
		backoff:     backoff,
		log:         logging.OrDefault(cfg.Logger),
	}
}

func (e *Encoder) Dimension() int {
	return e.dim
}

// Provider names the provider every vector comes from.
func (e *Encoder) Provider() ProviderRef {
	return e.ref
}

func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for embedding slot: %w: %w", util.ErrEmbedding, err)
		}
		vec, err := e.embedOne(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		class := ClassifyError(err)
		if class == ErrorCanceled || ctx.Err() != nil {
			break
		}
		e.log.Warn("embedding attempt failed", "provider", e.ref.Raw, "attempt", attempt, "class", string(class), "error", err)
		if !Retryable(class) || attempt == e.maxAttempts {
			break
		}
		if err := sleepCtx(ctx, e.backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, fmt.Errorf("encode text with %s: %w: %w", e.ref.Raw, util.ErrEmbedding, lastErr)
}

func (e *Encoder) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, info, err := e.provider.Embed(ctx, EmbedRequest{Operation: "embed", Inputs: []string{text}, Dimension: e.dim})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%s returned %d vectors for 1 input", info.Name, len(vecs))
	}
	if len(vecs[0]) != e.dim {
		return nil, fmt.Errorf("%s returned dimension %d, want %d", info.Name, len(vecs[0]), e.dim)
	}
	return vecs[0], nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
