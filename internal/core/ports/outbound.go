package ports

import (
	"context"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

// EntryStore persists entries and their embeddings. Upsert replaces by ID.
type EntryStore interface {
	Upsert(ctx context.Context, entry *domain.Entry) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	GetAll(ctx context.Context) ([]domain.Entry, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (domain.StoreStats, error)

	SaveEmbedding(ctx context.Context, vec domain.EmbeddingVector) error
	ListEmbeddings(ctx context.Context, modelName string) ([]domain.EmbeddingVector, error)
	ListUnembedded(ctx context.Context, modelName string) ([]domain.Entry, error)
}

// LexicalIndex owns derived, rebuildable structures with no independent
// lifetime; RebuildAll regenerates everything from entries.
type LexicalIndex interface {
	AddEntry(ctx context.Context, entry domain.Entry) error
	RebuildAll(ctx context.Context, entries []domain.Entry) error
	FindSimilar(ctx context.Context, query string, limit int, threshold float64) ([]domain.LexicalHit, error)
	ExactMatch(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error)
	Clear(ctx context.Context) error
}

// FullTextMatcher is the substrate-backed exact-match engine (FTS5). The
// lexical chain falls back to the in-process engine when it errors.
type FullTextMatcher interface {
	Match(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error)
}

// VectorIndex answers k-nearest-neighbour queries by cosine similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, entryID string, vector []float32) error
	Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error)
	Clear(ctx context.Context) error
	Size() int
}

// Embedder builds vectors for document batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// PairwiseScorer is the degraded embedding mode: it can compare two texts
// but produces no storable fixed-length vector.
type PairwiseScorer interface {
	Score(query, text string) float64
}

// EmbeddingSource is the provider-chain surface the orchestrator sees:
// embedding when a real provider is pinned, pairwise scoring otherwise.
type EmbeddingSource interface {
	Embedder
	Degraded() bool
	Scorer() PairwiseScorer
}

// EmbeddingProvider is one link of the ranked provider chain.
type EmbeddingProvider interface {
	Embedder
	// Available probes the provider; the chain picks the first that answers.
	Available(ctx context.Context) error
}

// AssistantClient talks to the hosted file-search assistant.
type AssistantClient interface {
	UploadDocuments(ctx context.Context, docs []domain.UploadDocument) ([]domain.FileRef, error)
	Ask(ctx context.Context, question string, files []domain.FileRef) (string, error)
	UploadedFiles() []domain.FileRef
	ModelName() string
	Cleanup(ctx context.Context) error
}

// TextCleaner strips markup and chrome from raw captured text.
type TextCleaner interface {
	Clean(ctx context.Context, raw string) (string, error)
}

// MessageQueue publishes/consumes capture events.
type MessageQueue interface {
	PublishEntryCaptured(ctx context.Context, entryID string) error
	SubscribeEntryCaptured(ctx context.Context, handler func(context.Context, string) error) error
}
