package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding/heuristic"
	"github.com/kirillkom/clipindex/internal/infrastructure/index/ann"
)

func seedEntries(t *testing.T, store *memStore, n int) {
	t.Helper()
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		entry := domain.Entry{
			ID:         string(rune('a' + i)),
			Title:      "entry",
			Text:       "text " + string(rune('a'+i)),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.Upsert(context.Background(), &entry); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
}

func TestBackfillSecondRunWritesNothing(t *testing.T) {
	store := newMemStore()
	seedEntries(t, store, 3)
	embedding := &fakeEmbedding{fallback: []float32{1, 0}, scorer: heuristic.NewScorer()}
	uc := NewBackfillUseCase(store, ann.NewBrute(), embedding, 2, nil)

	first, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.Embedded != 3 || first.Failed != 0 {
		t.Fatalf("unexpected first report %+v", first)
	}

	writesAfterFirst := store.saveCalls
	second, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if second.Embedded != 0 || second.Failed != 0 {
		t.Fatalf("unexpected second report %+v", second)
	}
	if store.saveCalls != writesAfterFirst {
		t.Fatalf("second run must write nothing, got %d extra writes", store.saveCalls-writesAfterFirst)
	}
}

func TestBackfillContinuesPastFailedBatch(t *testing.T) {
	store := newMemStore()
	seedEntries(t, store, 3)
	embedding := &fakeEmbedding{
		fallback: []float32{1, 0},
		failOn:   map[string]bool{"entry\ntext b": true},
		scorer:   heuristic.NewScorer(),
	}
	uc := NewBackfillUseCase(store, ann.NewBrute(), embedding, 1, nil)

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Embedded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	// The failed entry stays pending for the next run.
	pending, err := store.ListUnembedded(context.Background(), embedding.ModelName())
	if err != nil {
		t.Fatalf("ListUnembedded() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("expected entry b pending, got %+v", pending)
	}
}

func TestBackfillSkipsWhenDegraded(t *testing.T) {
	store := newMemStore()
	seedEntries(t, store, 2)
	uc := NewBackfillUseCase(store, ann.NewBrute(), &fakeEmbedding{degraded: true, scorer: heuristic.NewScorer()}, 2, nil)

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Embedded != 0 || store.saveCalls != 0 {
		t.Fatalf("degraded mode must not write vectors, got %+v", report)
	}
}

func TestBackfillStopsOnCancelledContext(t *testing.T) {
	store := newMemStore()
	seedEntries(t, store, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewBackfillUseCase(store, ann.NewBrute(), &fakeEmbedding{fallback: []float32{1}, scorer: heuristic.NewScorer()}, 1, nil)
	_, err := uc.Run(ctx)
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestEmbedEntryStoresVectorAndUpdatesIndex(t *testing.T) {
	store := newMemStore()
	seedEntries(t, store, 1)
	vectors := ann.NewBrute()
	embedding := &fakeEmbedding{fallback: []float32{0.5, 0.5}, scorer: heuristic.NewScorer()}
	uc := NewBackfillUseCase(store, vectors, embedding, 1, nil)

	if err := uc.EmbedEntry(context.Background(), "a"); err != nil {
		t.Fatalf("EmbedEntry() error = %v", err)
	}
	if vectors.Size() != 1 {
		t.Fatalf("expected vector in index")
	}
	stats, _ := store.Stats(context.Background())
	if stats.TotalEmbeddings != 1 {
		t.Fatalf("expected persisted embedding, got %+v", stats)
	}
}
