package lexical

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

func entry(id, text string) domain.Entry {
	return domain.Entry{ID: id, Text: text}
}

func seedPets(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	ctx := context.Background()
	for _, e := range []domain.Entry{
		entry("1", "cats are great pets"),
		entry("2", "dogs are loyal animals"),
		entry("3", "I love my pet cat"),
	} {
		if err := ix.AddEntry(ctx, e); err != nil {
			t.Fatalf("AddEntry(%s) error = %v", e.ID, err)
		}
	}
	return ix
}

func TestTokenizeDropsShortAndStopwords(t *testing.T) {
	got := tokenize("The cat, a DOG and his 42 toys!")
	want := []string{"cat", "dog", "toys"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExactMatchTokenANDSemantics(t *testing.T) {
	ix := seedPets(t)
	hits, err := ix.ExactMatch(context.Background(), "cat", 10)
	if err != nil {
		t.Fatalf("ExactMatch() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %v", len(hits), hits)
	}
	got := map[string]bool{}
	for _, h := range hits {
		got[h.EntryID] = true
	}
	if !got["1"] || !got["3"] {
		t.Fatalf("expected entries 1 and 3, got %v", hits)
	}

	// Multi-term queries require every term.
	hits, err = ix.ExactMatch(context.Background(), "loyal cat", 10)
	if err != nil {
		t.Fatalf("ExactMatch() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits for disjoint terms, got %v", hits)
	}
}

func TestFindSimilarRanksRelatedDocsFirst(t *testing.T) {
	ix := seedPets(t)
	hits, err := ix.FindSimilar(context.Background(), "cats and pets", 10, 0)
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected hits")
	}
	if hits[0].EntryID != "1" {
		t.Fatalf("expected entry 1 first, got %v", hits)
	}
	for _, h := range hits {
		if h.EntryID == "2" && h.Score >= hits[0].Score {
			t.Fatalf("dog entry ranked above cat entry: %v", hits)
		}
	}
}

func TestFindSimilarThresholdSubsetProperty(t *testing.T) {
	ix := seedPets(t)
	ctx := context.Background()
	loose, err := ix.FindSimilar(ctx, "great pet cat", 10, 0.0)
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	strict, err := ix.FindSimilar(ctx, "great pet cat", 10, 0.3)
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	looseIDs := map[string]bool{}
	for _, h := range loose {
		looseIDs[h.EntryID] = true
	}
	for _, h := range strict {
		if !looseIDs[h.EntryID] {
			t.Fatalf("strict result %s missing from loose results", h.EntryID)
		}
	}
	if len(strict) > len(loose) {
		t.Fatalf("strict threshold returned more hits (%d) than loose (%d)", len(strict), len(loose))
	}
}

func TestUpsertReplacesDocument(t *testing.T) {
	ix := seedPets(t)
	ctx := context.Background()
	if err := ix.AddEntry(ctx, entry("1", "quantum physics lecture notes")); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	hits, err := ix.ExactMatch(ctx, "cat", 10)
	if err != nil {
		t.Fatalf("ExactMatch() error = %v", err)
	}
	for _, h := range hits {
		if h.EntryID == "1" {
			t.Fatalf("replaced document still matches old text: %v", hits)
		}
	}
}

func TestRebuildAllIsIdempotent(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()
	entries := []domain.Entry{entry("1", "cats are great pets"), entry("2", "dogs are loyal animals")}
	for i := 0; i < 3; i++ {
		if err := ix.RebuildAll(ctx, entries); err != nil {
			t.Fatalf("RebuildAll() error = %v", err)
		}
	}
	hits, err := ix.ExactMatch(ctx, "cats", 10)
	if err != nil {
		t.Fatalf("ExactMatch() error = %v", err)
	}
	if len(hits) != 1 || hits[0].EntryID != "1" {
		t.Fatalf("unexpected hits after repeated rebuild: %v", hits)
	}
}

type failingMatcher struct{ calls int }

func (f *failingMatcher) Match(context.Context, string, int) ([]domain.LexicalHit, error) {
	f.calls++
	return nil, errors.New("fts engine offline")
}

func TestChainFallsBackToMemoryEngine(t *testing.T) {
	mem := seedPets(t)
	matcher := &failingMatcher{}
	chain := NewChain(matcher, mem)

	hits, err := chain.ExactMatch(context.Background(), "cat", 10)
	if err != nil {
		t.Fatalf("ExactMatch() error = %v", err)
	}
	if matcher.calls != 1 {
		t.Fatalf("expected primary engine tried once, got %d", matcher.calls)
	}
	if len(hits) != 2 {
		t.Fatalf("expected fallback hits, got %v", hits)
	}
}
