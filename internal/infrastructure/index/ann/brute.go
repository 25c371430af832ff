package ann

import (
	"context"
	"sort"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

// Brute is the exact nearest-neighbour index: cosine against every stored
// vector. It is the reference ranking semantics the approximate index must
// reproduce.
type Brute struct {
	mu      sync.RWMutex
	ids     []string
	vectors map[string][]float32
}

func NewBrute() *Brute {
	return &Brute{vectors: make(map[string][]float32)}
}

func (b *Brute) Upsert(_ context.Context, entryID string, vector []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.vectors[entryID]; !exists {
		b.ids = append(b.ids, entryID)
	}
	b.vectors[entryID] = vector
	return nil
}

func (b *Brute) Search(_ context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hits := make([]domain.VectorHit, 0, len(b.ids))
	for _, id := range b.ids {
		hits = append(hits, domain.VectorHit{EntryID: id, Score: Cosine(query, b.vectors[id])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *Brute) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = nil
	b.vectors = make(map[string][]float32)
	return nil
}

func (b *Brute) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}
