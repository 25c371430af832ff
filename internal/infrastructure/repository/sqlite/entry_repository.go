package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

var errFTSDisabled = errors.New("fts5 module not compiled into driver")

// EntryRepository persists entries, their embeddings, and the FTS5 mirror.
// It is both the EntryStore and the substrate FullTextMatcher. The FTS5
// module requires the sqlite_fts5 build tag (see Makefile); without it
// EnsureSchema disables the mirror and Match reports the engine unavailable
// so the lexical chain serves exact-match in-process.
type EntryRepository struct {
	db         *sqlx.DB
	ftsEnabled bool
}

func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db, ftsEnabled: true}
}

func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (r *EntryRepository) EnsureSchema(ctx context.Context) error {
	const baseDDL = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	captured_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_captured_at ON entries(captured_at DESC);

CREATE TABLE IF NOT EXISTS embeddings (
	entry_id TEXT PRIMARY KEY REFERENCES entries(id) ON DELETE CASCADE,
	model_name TEXT NOT NULL,
	vector BLOB NOT NULL
);
`
	const ftsDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(entry_id UNINDEXED, title, body, url);

CREATE TRIGGER IF NOT EXISTS entries_fts_insert AFTER INSERT ON entries BEGIN
	INSERT INTO entries_fts(entry_id, title, body, url) VALUES (new.id, new.title, new.body, new.url);
END;

CREATE TRIGGER IF NOT EXISTS entries_fts_delete AFTER DELETE ON entries BEGIN
	DELETE FROM entries_fts WHERE entry_id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS entries_fts_update AFTER UPDATE ON entries BEGIN
	DELETE FROM entries_fts WHERE entry_id = old.id;
	INSERT INTO entries_fts(entry_id, title, body, url) VALUES (new.id, new.title, new.body, new.url);
END;
`
	if _, err := r.db.ExecContext(ctx, baseDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	// A driver built without fts5 cannot create the mirror; that degrades
	// exact-match to the in-process engine, it never blocks startup.
	if _, err := r.db.ExecContext(ctx, ftsDDL); err != nil {
		r.ftsEnabled = false
		slog.Warn("fulltext_mirror_disabled", "error", err)
	}
	return nil
}

// FullTextEnabled reports whether the FTS5 mirror exists and can serve
// exact-match queries.
func (r *EntryRepository) FullTextEnabled() bool { return r.ftsEnabled }

func (r *EntryRepository) Upsert(ctx context.Context, entry *domain.Entry) (string, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO entries (id, url, title, body, word_count, captured_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	url = excluded.url,
	title = excluded.title,
	body = excluded.body,
	word_count = excluded.word_count,
	captured_at = excluded.captured_at
`, entry.ID, entry.URL, entry.Title, entry.Text, entry.WordCount, entry.CapturedAt.UTC())
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "upsert entry", err)
	}
	return entry.ID, nil
}

func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, title, body, word_count, captured_at FROM entries WHERE id = ?
`, id)
	entry, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry not found: %s", id)
		}
		return nil, domain.WrapError(domain.ErrStorage, "get entry", err)
	}
	return entry, nil
}

func (r *EntryRepository) GetAll(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, title, body, word_count, captured_at
FROM entries
ORDER BY captured_at DESC
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list entries", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan entry", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate entries", err)
	}
	return out, nil
}

func (r *EntryRepository) Clear(ctx context.Context) error {
	// Embeddings cascade; the FTS mirror clears through the delete trigger.
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return domain.WrapError(domain.ErrStorage, "clear entries", err)
	}
	return nil
}

func (r *EntryRepository) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	row := r.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM entries), (SELECT COUNT(*) FROM embeddings)
`)
	if err := row.Scan(&stats.TotalEntries, &stats.TotalEmbeddings); err != nil {
		return domain.StoreStats{}, domain.WrapError(domain.ErrStorage, "store stats", err)
	}
	return stats, nil
}

func (r *EntryRepository) SaveEmbedding(ctx context.Context, vec domain.EmbeddingVector) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO embeddings (entry_id, model_name, vector)
VALUES (?, ?, ?)
ON CONFLICT(entry_id) DO UPDATE SET
	model_name = excluded.model_name,
	vector = excluded.vector
`, vec.EntryID, vec.ModelName, encodeVector(vec.Vector))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "save embedding", err)
	}
	return nil
}

func (r *EntryRepository) ListEmbeddings(ctx context.Context, modelName string) ([]domain.EmbeddingVector, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT entry_id, model_name, vector FROM embeddings WHERE model_name = ?
`, modelName)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list embeddings", err)
	}
	defer rows.Close()

	var out []domain.EmbeddingVector
	for rows.Next() {
		var vec domain.EmbeddingVector
		var blob []byte
		if err := rows.Scan(&vec.EntryID, &vec.ModelName, &blob); err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan embedding", err)
		}
		vec.Vector = decodeVector(blob)
		out = append(out, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate embeddings", err)
	}
	return out, nil
}

func (r *EntryRepository) ListUnembedded(ctx context.Context, modelName string) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT e.id, e.url, e.title, e.body, e.word_count, e.captured_at
FROM entries e
LEFT JOIN embeddings em ON em.entry_id = e.id AND em.model_name = ?
WHERE em.entry_id IS NULL
ORDER BY e.captured_at ASC
`, modelName)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list unembedded", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan unembedded", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate unembedded", err)
	}
	return out, nil
}

// Match is the FTS5 exact-match engine: every whitespace-split query term
// must appear, ranked by bm25 relevance. Terms match as prefixes so "cat"
// also hits "cats", the same partial-term semantics the in-process engine
// uses. Errors bubble up so the lexical chain can fall back to it.
func (r *EntryRepository) Match(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	if !r.ftsEnabled {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "fts match", errFTSDisabled)
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"*`
	}
	ftsQuery := strings.Join(quoted, " AND ")

	rows, err := r.db.QueryContext(ctx, `
SELECT entry_id, bm25(entries_fts) AS rank
FROM entries_fts
WHERE entries_fts MATCH ?
ORDER BY rank ASC
LIMIT ?
`, ftsQuery, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "fts match", err)
	}
	defer rows.Close()

	var out []domain.LexicalHit
	for rows.Next() {
		var hit domain.LexicalHit
		var rank float64
		if err := rows.Scan(&hit.EntryID, &rank); err != nil {
			return nil, domain.WrapError(domain.ErrIndexUnavailable, "scan fts hit", err)
		}
		// bm25 is lower-is-better; negate for descending relevance.
		hit.Score = -rank
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "iterate fts hits", err)
	}
	return out, nil
}

func scanEntry(scan func(dest ...any) error) (*domain.Entry, error) {
	var entry domain.Entry
	var capturedAt time.Time
	if err := scan(&entry.ID, &entry.URL, &entry.Title, &entry.Text, &entry.WordCount, &capturedAt); err != nil {
		return nil, err
	}
	entry.CapturedAt = capturedAt.UTC()
	return &entry, nil
}
