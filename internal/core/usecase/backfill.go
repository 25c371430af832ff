package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

const defaultBackfillBatchSize = 16

// BackfillUseCase computes missing embeddings for stored entries. Safe to
// re-run: already-embedded entries are skipped, and one bad document never
// aborts the batch.
type BackfillUseCase struct {
	store     ports.EntryStore
	vectors   ports.VectorIndex
	embedding ports.EmbeddingSource
	batchSize int
	limiter   *rate.Limiter
}

func NewBackfillUseCase(
	store ports.EntryStore,
	vectors ports.VectorIndex,
	embedding ports.EmbeddingSource,
	batchSize int,
	limiter *rate.Limiter,
) *BackfillUseCase {
	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &BackfillUseCase{
		store:     store,
		vectors:   vectors,
		embedding: embedding,
		batchSize: batchSize,
		limiter:   limiter,
	}
}

func (uc *BackfillUseCase) Run(ctx context.Context) (domain.BackfillReport, error) {
	var report domain.BackfillReport

	if uc.embedding.Degraded() {
		slog.Warn("backfill_skipped", "reason", "embedding provider degraded")
		return report, nil
	}

	model := uc.embedding.ModelName()
	pending, err := uc.store.ListUnembedded(ctx, model)
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		return report, nil
	}
	slog.Info("backfill_started", "pending", len(pending), "model", model)

	for start := 0; start < len(pending); start += uc.batchSize {
		if err := ctx.Err(); err != nil {
			return report, domain.FromContext("backfill", err)
		}
		end := start + uc.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := uc.limiter.Wait(ctx); err != nil {
			return report, domain.FromContext("backfill", err)
		}

		texts := make([]string, len(batch))
		for i, entry := range batch {
			texts[i] = entry.Title + "\n" + entry.Text
		}
		vectors, err := uc.embedding.Embed(ctx, texts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, domain.FromContext("backfill", ctxErr)
			}
			slog.Warn("backfill_batch_failed", "from", batch[0].ID, "size", len(batch), "error", err)
			report.Failed += len(batch)
			continue
		}
		if len(vectors) != len(batch) {
			slog.Warn("backfill_batch_mismatch", "expected", len(batch), "got", len(vectors))
			report.Failed += len(batch)
			continue
		}

		for i, entry := range batch {
			if err := uc.saveVector(ctx, entry.ID, vectors[i], model); err != nil {
				slog.Warn("backfill_entry_failed", "entry_id", entry.ID, "error", err)
				report.Failed++
				continue
			}
			report.Embedded++
		}
	}

	slog.Info("backfill_finished", "embedded", report.Embedded, "failed", report.Failed)
	return report, nil
}

// EmbedEntry embeds a single entry, used by the capture-event worker path.
func (uc *BackfillUseCase) EmbedEntry(ctx context.Context, entryID string) error {
	if uc.embedding.Degraded() {
		return domain.WrapError(domain.ErrEmbedding, "embed entry", fmt.Errorf("provider degraded"))
	}
	entry, err := uc.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	vectors, err := uc.embedding.Embed(ctx, []string{entry.Title + "\n" + entry.Text})
	if err != nil {
		return err
	}
	if len(vectors) != 1 {
		return domain.WrapError(domain.ErrEmbedding, "embed entry", fmt.Errorf("expected 1 vector, got %d", len(vectors)))
	}
	return uc.saveVector(ctx, entry.ID, vectors[0], uc.embedding.ModelName())
}

func (uc *BackfillUseCase) saveVector(ctx context.Context, entryID string, vector []float32, model string) error {
	err := uc.store.SaveEmbedding(ctx, domain.EmbeddingVector{
		EntryID:   entryID,
		Vector:    vector,
		ModelName: model,
	})
	if err != nil {
		return err
	}
	if err := uc.vectors.Upsert(ctx, entryID, vector); err != nil {
		// The persisted vector reloads into the index on next startup.
		slog.Warn("vector_index_upsert_failed", "entry_id", entryID, "error", err)
	}
	return nil
}

var _ ports.BackfillRunner = (*BackfillUseCase)(nil)
