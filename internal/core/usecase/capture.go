package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

var errEmptyText = errors.New("text is required")

type CaptureUseCase struct {
	store   ports.EntryStore
	lexical ports.LexicalIndex
	vectors ports.VectorIndex
	queue   ports.MessageQueue
}

func NewCaptureUseCase(
	store ports.EntryStore,
	lexical ports.LexicalIndex,
	vectors ports.VectorIndex,
	queue ports.MessageQueue,
) *CaptureUseCase {
	return &CaptureUseCase{
		store:   store,
		lexical: lexical,
		vectors: vectors,
		queue:   queue,
	}
}

// Capture stores the entry and notifies the indices. Index and queue
// failures degrade search freshness but never fail the capture itself.
func (uc *CaptureUseCase) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.Entry, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "capture", errEmptyText)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	entry := &domain.Entry{
		ID:         id,
		URL:        req.URL,
		Title:      strings.TrimSpace(req.Title),
		Text:       text,
		WordCount:  len(strings.Fields(text)),
		CapturedAt: capturedAt.UTC(),
	}

	if _, err := uc.store.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	if err := uc.lexical.AddEntry(ctx, *entry); err != nil {
		slog.Warn("lexical_index_update_failed", "entry_id", entry.ID, "error", err)
	}
	if uc.queue != nil {
		if err := uc.queue.PublishEntryCaptured(ctx, entry.ID); err != nil {
			slog.Warn("capture_event_publish_failed", "entry_id", entry.ID, "error", err)
		}
	}
	return entry, nil
}

// ClearAll wipes entries, embeddings (cascade), and both indices.
func (uc *CaptureUseCase) ClearAll(ctx context.Context) error {
	if err := uc.store.Clear(ctx); err != nil {
		return err
	}
	if err := uc.lexical.Clear(ctx); err != nil {
		slog.Warn("lexical_index_clear_failed", "error", err)
	}
	if err := uc.vectors.Clear(ctx); err != nil {
		slog.Warn("vector_index_clear_failed", "error", err)
	}
	return nil
}

func (uc *CaptureUseCase) Stats(ctx context.Context) (domain.StoreStats, error) {
	return uc.store.Stats(ctx)
}

var _ ports.EntryCapturer = (*CaptureUseCase)(nil)
