// Package postgres implements storage.ContentStore on PostgreSQL with
// optional pgvector acceleration. This is the server-persistent backend:
// a durable table keyed by source_id with bulk upsert, full scan, and a
// content_type index, matching the same store contract as the in-memory
// and SQLite backends.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"

	"github.com/google/uuid"
)

// Ensure *Store implements storage.ContentStore at compile time.
var _ storage.ContentStore = (*Store)(nil)

// Schema creates the contents table and its content_type index.
// All statements are idempotent. The raw embedding is kept as float8[] so
// the store works without pgvector; the vector column and its cosine index
// are added by MigrationPgvector when the extension is present.
const Schema = `
CREATE TABLE IF NOT EXISTS contents (
    id           TEXT PRIMARY KEY,
    source_id    TEXT NOT NULL UNIQUE,
    title        TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL,
    created_date TIMESTAMP NOT NULL,
    content_type TEXT NOT NULL,
    embedding    FLOAT8[]
);

CREATE INDEX IF NOT EXISTS idx_contents_content_type ON contents(content_type);
`

// MigrationPgvector adds the pgvector column and cosine index. Applied only
// when the vector extension is available.
const MigrationPgvector = `
ALTER TABLE contents ADD COLUMN IF NOT EXISTS embedding_vec vector;

DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'idx_contents_vec_cosine'
  ) THEN
    BEGIN
      EXECUTE 'CREATE INDEX idx_contents_vec_cosine ON contents USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)';
    EXCEPTION WHEN others THEN
      -- ivfflat needs a fixed dimension; skip the index until one is known.
      NULL;
    END;
  END IF;
END $$;
`

// Store is a PostgreSQL-backed ContentStore.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool // true when the pgvector extension is present
}

// NewStore connects to PostgreSQL at dsn and initialises the schema.
// Connection or schema failures wrap storage.ErrStorageUnavailable.
// pgvector is probed at startup; without it, similarity search falls back
// to ranking in Go over the float8[] column.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres open: %v", storage.ErrStorageUnavailable, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres ping: %v", storage.ErrStorageUnavailable, err)
	}

	s := &Store{db: db}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", storage.ErrStorageUnavailable, err)
	}

	// Try to enable pgvector. Servers without the extension still work;
	// search just ranks in Go instead of in the database.
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (in-database ranking disabled): %v", err)
	} else if _, err := db.Exec(MigrationPgvector); err != nil {
		log.Printf("postgres: failed to apply pgvector migration (in-database ranking disabled): %v", err)
	} else {
		s.pgvectorAvailable = true
	}

	return s, nil
}

// embeddingToArray converts a float32 vector into a pq array value.
// Returns nil for an empty vector so the column stores NULL.
func embeddingToArray(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	arr := make(pq.Float64Array, len(embedding))
	for i, v := range embedding {
		arr[i] = float64(v)
	}
	return arr
}

// embeddingVec converts a float32 vector into a pgvector value, or nil when
// the vector is empty or the extension is unavailable.
func (s *Store) embeddingVec(embedding []float32) interface{} {
	if !s.pgvectorAvailable || len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
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

	query := `
		INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			content = EXCLUDED.content,
			created_date = EXCLUDED.created_date,
			content_type = EXCLUDED.content_type,
			embedding = EXCLUDED.embedding
	`
	args := []interface{}{id, c.SourceID, c.Title, c.Author, c.Content, c.CreatedDate, string(c.Type), embeddingToArray(c.Embedding)}

	if s.pgvectorAvailable {
		query = `
			INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding, embedding_vec)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source_id) DO UPDATE SET
				title = EXCLUDED.title,
				author = EXCLUDED.author,
				content = EXCLUDED.content,
				created_date = EXCLUDED.created_date,
				content_type = EXCLUDED.content_type,
				embedding = EXCLUDED.embedding,
				embedding_vec = EXCLUDED.embedding_vec
		`
		args = append(args, s.embeddingVec(c.Embedding))
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: add content %q: %w", c.SourceID, err)
	}
	return nil
}

// AddContents bulk-inserts entities inside one transaction, skipping rows
// whose source_id already exists. Returns the number actually stored.
func (s *Store) AddContents(ctx context.Context, cs []*types.Content) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id) DO NOTHING
	`
	if s.pgvectorAvailable {
		query = `
			INSERT INTO contents (id, source_id, title, author, content, created_date, content_type, embedding, embedding_vec)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source_id) DO NOTHING
		`
	}

	stored := 0
	for _, c := range cs {
		if c == nil || c.SourceID == "" {
			return 0, storage.ErrInvalidInput
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		args := []interface{}{id, c.SourceID, c.Title, c.Author, c.Content, c.CreatedDate, string(c.Type), embeddingToArray(c.Embedding)}
		if s.pgvectorAvailable {
			args = append(args, s.embeddingVec(c.Embedding))
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: bulk insert %q: %w", c.SourceID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			stored += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit bulk insert: %w", err)
	}
	return stored, nil
}

// contentSelectColumns is the canonical SELECT column list for the contents
// table. It must match the scan order in scanContents.
const contentSelectColumns = `id, source_id, title, author, content, created_date, content_type, embedding`

// GetAllContents returns all stored entities ordered by created_date.
func (s *Store) GetAllContents(ctx context.Context) ([]*types.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents ORDER BY created_date, source_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanContents(rows)
}

// GetContentsByType returns entities of the given type using the
// content_type index.
func (s *Store) GetContentsByType(ctx context.Context, t types.ContentType) ([]*types.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents WHERE content_type = $1 ORDER BY created_date, source_id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("postgres: list contents by type %q: %w", t, err)
	}
	defer func() { _ = rows.Close() }()

	return scanContents(rows)
}

// SearchSimilar ranks embedded entities by cosine similarity to query.
// With pgvector the ranking runs in the database via the <=> cosine-distance
// operator; otherwise (or for a zero-magnitude query, whose similarity is
// defined as 0 for every entity) it falls back to an exhaustive in-Go scan.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*types.Content, error) {
	if len(query) == 0 {
		return []*types.Content{}, nil
	}
	limit = storage.NormalizeLimit(limit)

	if !s.pgvectorAvailable || isZeroVector(query) {
		return s.searchSimilarScan(ctx, query, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentSelectColumns+`
		FROM contents
		WHERE embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $1::vector
		LIMIT $2`, pgvector.NewVector(query), limit)
	if err != nil {
		// Dimension mismatches or missing vector rows degrade to the scan
		// path rather than failing the search.
		return s.searchSimilarScan(ctx, query, limit)
	}
	defer func() { _ = rows.Close() }()

	return scanContents(rows)
}

// searchSimilarScan loads embedded rows and ranks them in Go.
func (s *Store) searchSimilarScan(ctx context.Context, query []float32, limit int) ([]*types.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentSelectColumns+` FROM contents WHERE embedding IS NOT NULL ORDER BY created_date, source_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load embeddings: %w", err)
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
		return fmt.Errorf("postgres: clear contents: %w", err)
	}
	return nil
}

// Count returns the current entity count.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count contents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanContents reads content rows in contentSelectColumns order.
func scanContents(rows *sql.Rows) ([]*types.Content, error) {
	var results []*types.Content
	for rows.Next() {
		var c types.Content
		var contentType string
		var arr pq.Float64Array
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Title, &c.Author, &c.Content,
			&c.CreatedDate, &contentType, &arr); err != nil {
			return nil, fmt.Errorf("postgres: scan content row: %w", err)
		}
		c.Type = types.ContentType(contentType)
		if len(arr) > 0 {
			c.Embedding = make([]float32, len(arr))
			for i, v := range arr {
				c.Embedding[i] = float32(v)
			}
		}
		results = append(results, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate content rows: %w", err)
	}
	return results, nil
}

// isZeroVector reports whether every component of v is zero.
func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
