package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

// memStore is an in-memory EntryStore for use case tests.
type memStore struct {
	mu         sync.Mutex
	entries    map[string]domain.Entry
	embeddings map[string]domain.EmbeddingVector
	saveCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		entries:    make(map[string]domain.Entry),
		embeddings: make(map[string]domain.EmbeddingVector),
	}
}

func (s *memStore) Upsert(_ context.Context, entry *domain.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = *entry
	return entry.ID, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry not found: %s", id)
	}
	return &entry, nil
}

func (s *memStore) GetAll(context.Context) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out, nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.Entry)
	s.embeddings = make(map[string]domain.EmbeddingVector)
	return nil
}

func (s *memStore) Stats(context.Context) (domain.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.StoreStats{
		TotalEntries:    len(s.entries),
		TotalEmbeddings: len(s.embeddings),
	}, nil
}

func (s *memStore) SaveEmbedding(_ context.Context, vec domain.EmbeddingVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.embeddings[vec.EntryID] = vec
	return nil
}

func (s *memStore) ListEmbeddings(_ context.Context, modelName string) ([]domain.EmbeddingVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmbeddingVector
	for _, vec := range s.embeddings {
		if vec.ModelName == modelName {
			out = append(out, vec)
		}
	}
	return out, nil
}

func (s *memStore) ListUnembedded(_ context.Context, modelName string) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Entry
	for id, entry := range s.entries {
		if vec, ok := s.embeddings[id]; ok && vec.ModelName == modelName {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ ports.EntryStore = (*memStore)(nil)

// fakeEmbedding returns canned vectors per exact text and supports forcing
// degraded mode or per-text failures.
type fakeEmbedding struct {
	vectors  map[string][]float32
	fallback []float32
	failOn   map[string]bool
	degraded bool
	scorer   ports.PairwiseScorer
}

func (f *fakeEmbedding) lookup(text string) ([]float32, error) {
	if f.failOn[text] {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed", fmt.Errorf("injected failure"))
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return nil, fmt.Errorf("no canned vector for %q", text)
}

func (f *fakeEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.lookup(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedding) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.lookup(text)
}

func (f *fakeEmbedding) ModelName() string               { return "canned-test-model" }
func (f *fakeEmbedding) Degraded() bool                  { return f.degraded }
func (f *fakeEmbedding) Scorer() ports.PairwiseScorer    { return f.scorer }

var _ ports.EmbeddingSource = (*fakeEmbedding)(nil)
