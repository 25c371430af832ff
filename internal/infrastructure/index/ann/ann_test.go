package ann

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func TestCosineProperties(t *testing.T) {
	v := []float32{0.3, -0.7, 0.2, 0.9}
	if got := Cosine(v, v); math.Abs(got-1) > 1e-9 {
		t.Fatalf("Cosine(v, v) = %v, want 1", got)
	}
	zero := make([]float32, len(v))
	if got := Cosine(v, zero); got != 0 {
		t.Fatalf("Cosine(v, 0) = %v, want 0", got)
	}
	if got := Cosine(zero, zero); got != 0 {
		t.Fatalf("Cosine(0, 0) = %v, want 0", got)
	}
	if got := Cosine(v, []float32{1, 2}); got != 0 {
		t.Fatalf("Cosine on mismatched lengths = %v, want 0", got)
	}
}

func TestBruteRanksByCosineDescending(t *testing.T) {
	b := NewBrute()
	ctx := context.Background()
	vectors := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.9, 0.1, 0},
		"c": {0, 1, 0},
	}
	for id, v := range vectors {
		if err := b.Upsert(ctx, id, v); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}
	hits, err := b.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].EntryID != "a" || hits[1].EntryID != "b" {
		t.Fatalf("unexpected ranking: %v", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("scores not descending: %v", hits)
	}
}

func TestBruteUpsertReplaces(t *testing.T) {
	b := NewBrute()
	ctx := context.Background()
	_ = b.Upsert(ctx, "a", []float32{1, 0})
	_ = b.Upsert(ctx, "a", []float32{0, 1})
	if b.Size() != 1 {
		t.Fatalf("expected size 1 after upsert, got %d", b.Size())
	}
	hits, _ := b.Search(ctx, []float32{0, 1}, 1)
	if len(hits) != 1 || hits[0].Score < 0.99 {
		t.Fatalf("expected replaced vector to match query: %v", hits)
	}
}

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		v[i] = float32(rng.NormFloat64())
		norm += float64(v[i]) * float64(v[i])
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func TestHNSWMatchesBruteForceTopHit(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	brute := NewBrute()
	graph := NewHNSW()

	const dim = 16
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("e-%d", i)
		v := randomUnitVector(rng, dim)
		if err := brute.Upsert(ctx, id, v); err != nil {
			t.Fatalf("brute upsert: %v", err)
		}
		if err := graph.Upsert(ctx, id, v); err != nil {
			t.Fatalf("hnsw upsert: %v", err)
		}
	}

	misses := 0
	for q := 0; q < 20; q++ {
		query := randomUnitVector(rng, dim)
		exact, _ := brute.Search(ctx, query, 1)
		approx, err := graph.Search(ctx, query, 1)
		if err != nil {
			t.Fatalf("hnsw search: %v", err)
		}
		if len(approx) != 1 {
			t.Fatalf("expected 1 hit, got %d", len(approx))
		}
		if approx[0].EntryID != exact[0].EntryID {
			misses++
		}
	}
	// Approximate search trades recall for speed, not semantics; with
	// ef=64 over 300 points recall@1 should be near-perfect.
	if misses > 2 {
		t.Fatalf("hnsw missed brute-force top hit %d/20 times", misses)
	}
}

func TestSwitchingUsesBruteUntilWarm(t *testing.T) {
	ctx := context.Background()
	s := NewSwitching(5)
	for i := 0; i < 4; i++ {
		v := []float32{float32(i), 1, 0}
		if err := s.Upsert(ctx, fmt.Sprintf("e-%d", i), v); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	hits, err := s.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].EntryID != "e-0" {
		t.Fatalf("unexpected cold-path result: %v", hits)
	}

	// Cross the warm threshold; ranking semantics must not change.
	_ = s.Upsert(ctx, "e-4", []float32{4, 1, 0})
	_ = s.Upsert(ctx, "e-5", []float32{5, 1, 0})
	hits, err = s.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].EntryID != "e-0" {
		t.Fatalf("unexpected warm-path result: %v", hits)
	}
}
