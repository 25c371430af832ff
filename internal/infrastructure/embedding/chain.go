// Package embedding selects the active embedding provider from a ranked
// list and shares one initialization across concurrent callers.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

var errNoProvider = errors.New("no embedding provider available")

// Chain probes providers in priority order on first use and pins the first
// one that answers. When none does, the chain runs degraded: pairwise
// scoring only, no storable vectors.
type Chain struct {
	providers []ports.EmbeddingProvider
	scorer    ports.PairwiseScorer

	mu      sync.Mutex
	initRun chan struct{}
	active  ports.Embedder
}

func NewChain(scorer ports.PairwiseScorer, providers ...ports.EmbeddingProvider) *Chain {
	return &Chain{providers: providers, scorer: scorer}
}

// Init probes and pins a provider. Concurrent callers share the in-flight
// initialization instead of racing duplicate probes; repeat calls are no-ops.
func (c *Chain) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.initRun != nil {
		done := c.initRun
		c.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	c.initRun = done
	c.mu.Unlock()

	defer close(done)
	for _, provider := range c.providers {
		if err := provider.Available(ctx); err != nil {
			slog.Warn("embedding_provider_unavailable", "model", provider.ModelName(), "error", err)
			continue
		}
		c.mu.Lock()
		c.active = provider
		c.mu.Unlock()
		slog.Info("embedding_provider_selected", "model", provider.ModelName())
		return nil
	}
	slog.Warn("embedding_degraded_mode", "reason", "no provider reachable, pairwise scoring only")
	return nil
}

func (c *Chain) current() ports.Embedder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Degraded reports whether only pairwise scoring is possible.
func (c *Chain) Degraded() bool { return c.current() == nil }

// Scorer is the degraded-mode comparator; always non-nil.
func (c *Chain) Scorer() ports.PairwiseScorer { return c.scorer }

func (c *Chain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	active := c.current()
	if active == nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed batch", errNoProvider)
	}
	vectors, err := active.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed batch", err)
	}
	return vectors, nil
}

func (c *Chain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	active := c.current()
	if active == nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", errNoProvider)
	}
	vec, err := active.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	return vec, nil
}

func (c *Chain) ModelName() string {
	if active := c.current(); active != nil {
		return active.ModelName()
	}
	return "token-overlap"
}

var _ ports.Embedder = (*Chain)(nil)
