package ann

import (
	"context"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

// DefaultWarmThreshold is the corpus size at which the approximate graph
// starts answering queries instead of the exact scan.
const DefaultWarmThreshold = 1000

// Switching feeds every upsert to both indexes and routes queries to the
// graph only once it is warm. Below the threshold, exact search is both
// faster and has perfect recall.
type Switching struct {
	brute     *Brute
	graph     *HNSW
	threshold int
}

func NewSwitching(threshold int) *Switching {
	if threshold <= 0 {
		threshold = DefaultWarmThreshold
	}
	return &Switching{
		brute:     NewBrute(),
		graph:     NewHNSW(),
		threshold: threshold,
	}
}

func (s *Switching) Upsert(ctx context.Context, entryID string, vector []float32) error {
	if err := s.brute.Upsert(ctx, entryID, vector); err != nil {
		return err
	}
	return s.graph.Upsert(ctx, entryID, vector)
}

func (s *Switching) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if s.brute.Size() >= s.threshold {
		hits, err := s.graph.Search(ctx, query, k)
		if err == nil {
			return hits, nil
		}
		// Approximate engine not ready; exact scan preserves semantics.
	}
	return s.brute.Search(ctx, query, k)
}

func (s *Switching) Clear(ctx context.Context) error {
	if err := s.brute.Clear(ctx); err != nil {
		return err
	}
	return s.graph.Clear(ctx)
}

func (s *Switching) Size() int { return s.brute.Size() }

var _ ports.VectorIndex = (*Switching)(nil)
var _ ports.VectorIndex = (*Brute)(nil)
var _ ports.VectorIndex = (*HNSW)(nil)
