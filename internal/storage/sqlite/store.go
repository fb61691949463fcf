// Package sqlite implements storage.ContentStore on an embedded SQLite
// database (modernc.org/sqlite, pure Go). This is the device-persistent
// backend: durable across restarts, keyed by source_id, with an index on
// content_type for typed scans.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Ensure *Store implements storage.ContentStore at compile time.
var _ storage.ContentStore = (*Store)(nil)

// schema creates the contents table and its content_type index.
// source_id is UNIQUE: it is the identity key for upserts and duplicate
// filtering. Embeddings are stored inline as little-endian float32 BLOBs.
const schema = `
CREATE TABLE IF NOT EXISTS contents (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	created_date TIMESTAMP NOT NULL,
	content_type TEXT NOT NULL,
	embedding    BLOB,
	dimension    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_contents_content_type ON contents(content_type);
`

// Store is a SQLite-backed ContentStore.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dsn and initialises the
// schema. Open or schema failures wrap storage.ErrStorageUnavailable so
// callers can surface them instead of silently losing data.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite open %q: %v", storage.ErrStorageUnavailable, dsn, err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL mode: %v", storage.ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set busy timeout: %v", storage.ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", storage.ErrStorageUnavailable, err)
	}

	return &Store{db: db}, nil
}

// AddContent inserts or updates a single entity by source_id.
func (s *Store) AddContent(ctx context.Context, c *types.Content) error {
	if c == nil || c.SourceID == "" {
		return storage.ErrInvalidInput
	}

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	blob := serializeEmbedding(c.Embedding)

	const query = `
		INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			content = excluded.content,
			created_date = excluded.created_date,
			content_type = excluded.content_type,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`
	_, err := s.db.ExecContext(ctx, query,
		id, c.SourceID, c.Title, c.Author, c.Content, c.CreatedDate, string(c.Type), blob, len(c.Embedding))
	if err != nil {
		return fmt.Errorf("sqlite: add content %q: %w", c.SourceID, err)
	}
	return nil
}

// AddContents bulk-inserts entities inside one transaction, skipping rows
// whose source_id already exists. Returns the number actually stored.
func (s *Store) AddContents(ctx context.Context, cs []*types.Content) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING
	`

	stored := 0
	for _, c := range cs {
		if c == nil || c.SourceID == "" {
			return 0, storage.ErrInvalidInput
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, query,
			id, c.SourceID, c.Title, c.Author, c.Content, c.CreatedDate, string(c.Type), serializeEmbedding(c.Embedding), len(c.Embedding))
		if err != nil {
			return 0, fmt.Errorf("sqlite: bulk insert %q: %w", c.SourceID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			stored += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit bulk insert: %w", err)
	}
	return stored, nil
}

// contentSelectColumns is the canonical SELECT column list for the contents
// table. It must match the scan order in scanContents.
const contentSelectColumns = `id, source_id, title, author, content, created_date, content_type, embedding, dimension`

// GetAllContents returns all stored entities ordered by created_date.
func (s *Store) GetAllContents(ctx context.Context) ([]*types.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents ORDER BY created_date, source_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list contents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanContents(rows)
}

// GetContentsByType returns entities of the given type using the
// content_type index.
func (s *Store) GetContentsByType(ctx context.Context, t types.ContentType) ([]*types.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents WHERE content_type = ? ORDER BY created_date, source_id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list contents by type %q: %w", t, err)
	}
	defer func() { _ = rows.Close() }()

	return scanContents(rows)
}

// SearchSimilar loads embedded rows and ranks them by cosine similarity in
// Go. The scan is exhaustive; for a single user's personal corpus (thousands
// of chunks) this stays well within budget.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*types.Content, error) {
	if len(query) == 0 {
		return []*types.Content{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents WHERE embedding IS NOT NULL ORDER BY created_date, source_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scanContents(rows)
	if err != nil {
		return nil, err
	}

	return storage.RankBySimilarity(candidates, query, limit), nil
}

// Clear removes all entities.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contents`); err != nil {
		return fmt.Errorf("sqlite: clear contents: %w", err)
	}
	return nil
}

// Count returns the current entity count.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count contents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanContents reads content rows in contentSelectColumns order.
func scanContents(rows *sql.Rows) ([]*types.Content, error) {
	var results []*types.Content
	for rows.Next() {
		var c types.Content
		var contentType string
		var blob []byte
		var dim int
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Title, &c.Author, &c.Content,
			&c.CreatedDate, &contentType, &blob, &dim); err != nil {
			return nil, fmt.Errorf("sqlite: scan content row: %w", err)
		}
		c.Type = types.ContentType(contentType)
		emb, err := deserializeEmbedding(blob, dim)
		if err != nil {
			// A corrupt embedding should not make the row unreadable;
			// the entity simply becomes "not yet embedded" again.
			emb = nil
		}
		c.Embedding = emb
		results = append(results, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate content rows: %w", err)
	}
	return results, nil
}

var errDimensionMismatch = errors.New("embedding blob length does not match dimension")
