// Package fallback keeps captures alive across primary storage outages.
// Entries that fail to persist land in a capped in-memory buffer so the
// capture path stays available; the buffer evicts oldest-first.
package fallback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
)

const DefaultCap = 100

type Store struct {
	primary ports.EntryStore
	cap     int

	mu      sync.RWMutex
	entries []domain.Entry
}

func NewStore(primary ports.EntryStore, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{primary: primary, cap: capacity}
}

func (s *Store) Upsert(ctx context.Context, entry *domain.Entry) (string, error) {
	id, err := s.primary.Upsert(ctx, entry)
	if err == nil {
		return id, nil
	}
	if !domain.IsKind(err, domain.ErrStorage) {
		return "", err
	}
	s.buffer(*entry)
	slog.Warn("entry_buffered_in_memory", "entry_id", entry.ID, "error", err)
	return entry.ID, nil
}

func (s *Store) buffer(entry domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
}

func (s *Store) buffered() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	entry, err := s.primary.GetByID(ctx, id)
	if err == nil {
		return entry, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			buffered := s.entries[i]
			return &buffered, nil
		}
	}
	return nil, err
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Entry, error) {
	persisted, err := s.primary.GetAll(ctx)
	buffered := s.buffered()
	if err != nil {
		if len(buffered) == 0 {
			return nil, err
		}
		slog.Warn("serving_buffered_entries_only", "count", len(buffered), "error", err)
		return buffered, nil
	}
	if len(buffered) == 0 {
		return persisted, nil
	}
	seen := make(map[string]struct{}, len(persisted))
	for i := range persisted {
		seen[persisted[i].ID] = struct{}{}
	}
	for i := range buffered {
		if _, ok := seen[buffered[i].ID]; !ok {
			persisted = append(persisted, buffered[i])
		}
	}
	return persisted, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return s.primary.Clear(ctx)
}

func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats, err := s.primary.Stats(ctx)
	buffered := s.buffered()
	if err != nil {
		if len(buffered) == 0 {
			return domain.StoreStats{}, err
		}
		return domain.StoreStats{TotalEntries: len(buffered)}, nil
	}
	// A failed re-capture of an existing ID sits in both places; only
	// buffered entries the primary does not hold add to the count.
	for i := range buffered {
		if _, lookupErr := s.primary.GetByID(ctx, buffered[i].ID); lookupErr != nil {
			stats.TotalEntries++
		}
	}
	return stats, nil
}

func (s *Store) SaveEmbedding(ctx context.Context, vec domain.EmbeddingVector) error {
	return s.primary.SaveEmbedding(ctx, vec)
}

func (s *Store) ListEmbeddings(ctx context.Context, modelName string) ([]domain.EmbeddingVector, error) {
	return s.primary.ListEmbeddings(ctx, modelName)
}

func (s *Store) ListUnembedded(ctx context.Context, modelName string) ([]domain.Entry, error) {
	entries, err := s.primary.ListUnembedded(ctx, modelName)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Drain flushes buffered entries back into the primary once it recovers.
// Entries that persist are dropped from the buffer; the rest stay.
func (s *Store) Drain(ctx context.Context) int {
	buffered := s.buffered()
	flushed := 0
	for i := range buffered {
		if _, err := s.primary.Upsert(ctx, &buffered[i]); err != nil {
			break
		}
		s.remove(buffered[i].ID)
		flushed++
	}
	if flushed > 0 {
		slog.Info("buffered_entries_flushed", "count", flushed)
	}
	return flushed
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

var _ ports.EntryStore = (*Store)(nil)
