package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding/heuristic"
)

type fakeProvider struct {
	name       string
	probeErr   error
	probeCalls int32
}

func (f *fakeProvider) Available(context.Context) error {
	atomic.AddInt32(&f.probeCalls, 1)
	return f.probeErr
}
func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (f *fakeProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (f *fakeProvider) ModelName() string { return f.name }

func TestChainPicksFirstAvailableProvider(t *testing.T) {
	down := &fakeProvider{name: "remote", probeErr: errors.New("unreachable")}
	up := &fakeProvider{name: "local"}
	chain := NewChain(heuristic.NewScorer(), down, up)

	vec, err := chain.EmbedQuery(context.Background(), "query")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if chain.ModelName() != "local" {
		t.Fatalf("expected local provider, got %s", chain.ModelName())
	}
}

func TestChainDegradedModeHasNoVectors(t *testing.T) {
	down := &fakeProvider{name: "remote", probeErr: errors.New("unreachable")}
	chain := NewChain(heuristic.NewScorer(), down)

	_, err := chain.EmbedQuery(context.Background(), "query")
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if !chain.Degraded() {
		t.Fatalf("expected degraded mode")
	}
	if score := chain.Scorer().Score("feline cat", "my cat sleeps"); score <= 0 {
		t.Fatalf("expected positive pairwise score, got %v", score)
	}
}

func TestChainInitSharedAcrossConcurrentCallers(t *testing.T) {
	provider := &fakeProvider{name: "remote"}
	chain := NewChain(heuristic.NewScorer(), provider)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = chain.Init(context.Background())
		}()
	}
	wg.Wait()
	if calls := atomic.LoadInt32(&provider.probeCalls); calls != 1 {
		t.Fatalf("expected exactly one probe, got %d", calls)
	}
}
