package lexical

import (
	"context"
	"log/slog"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

// Chain is the ranked-capability lexical index: the substrate full-text
// engine answers exact-match queries when it can, the in-process engine
// covers everything else. Callers never see which engine served them.
type Chain struct {
	fts ports.FullTextMatcher
	mem *Index
}

func NewChain(fts ports.FullTextMatcher, mem *Index) *Chain {
	return &Chain{fts: fts, mem: mem}
}

func (c *Chain) AddEntry(ctx context.Context, entry domain.Entry) error {
	return c.mem.AddEntry(ctx, entry)
}

func (c *Chain) RebuildAll(ctx context.Context, entries []domain.Entry) error {
	return c.mem.RebuildAll(ctx, entries)
}

func (c *Chain) Clear(ctx context.Context) error {
	return c.mem.Clear(ctx)
}

func (c *Chain) FindSimilar(ctx context.Context, query string, limit int, threshold float64) ([]domain.LexicalHit, error) {
	return c.mem.FindSimilar(ctx, query, limit, threshold)
}

func (c *Chain) ExactMatch(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	if c.fts != nil {
		hits, err := c.fts.Match(ctx, query, limit)
		if err == nil {
			return hits, nil
		}
		slog.Warn("fulltext_engine_fallback", "error", err)
	}
	return c.mem.ExactMatch(ctx, query, limit)
}

var _ ports.LexicalIndex = (*Chain)(nil)
