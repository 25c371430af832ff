package ports

import (
	"context"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

// EntryCapturer is the inbound contract for the capture RPC.
type EntryCapturer interface {
	Capture(ctx context.Context, req domain.CaptureRequest) (*domain.Entry, error)
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (domain.StoreStats, error)
}

// SearchService is the inbound contract for the retrieval orchestrator.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error)
}

// AnswerService is the inbound contract for the RAG answer pipeline.
type AnswerService interface {
	UploadDocuments(ctx context.Context, docs []domain.UploadDocument) ([]domain.FileRef, error)
	Answer(ctx context.Context, query string) (*domain.CohesiveAnswer, error)
	Cleanup(ctx context.Context) error
}

// BackfillRunner computes missing embeddings for stored entries.
type BackfillRunner interface {
	Run(ctx context.Context) (domain.BackfillReport, error)
	EmbedEntry(ctx context.Context, entryID string) error
}
