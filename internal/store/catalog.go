package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/workdesk/internal/retrieval"
)

// Catalog is the sqlite record of ingested documents and their chunks.
type Catalog struct {
	DB *sql.DB
}

func NewCatalog(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			filename TEXT PRIMARY KEY,
			kind TEXT,
			chunk_count INTEGER,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			page INTEGER,
			ordinal INTEGER,
			content TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS chunks_by_file ON chunks (filename COLLATE NOCASE, page, ordinal);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Catalog{DB: db}, nil
}

// Register replaces the catalog entry and chunks of doc.Filename.
func (c *Catalog) Register(ctx context.Context, doc retrieval.DocumentInfo, chunks []retrieval.Chunk) error {
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now()
	}
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE filename = ?`, doc.Filename); err != nil {
		return fmt.Errorf("clear chunks of %s: %w", doc.Filename, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (filename, kind, chunk_count, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET kind = excluded.kind, chunk_count = excluded.chunk_count, added_at = excluded.added_at`,
		doc.Filename, doc.Kind, len(chunks), doc.AddedAt.UTC())
	if err != nil {
		return fmt.Errorf("register %s: %w", doc.Filename, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, filename, page, ordinal, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, doc.Filename, ch.Page, ch.Ordinal, ch.Content); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// ChunkIDs returns the ids currently stored for source, so stale index entries can be dropped.
func (c *Catalog) ChunkIDs(ctx context.Context, source string) ([]string, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT id FROM chunks WHERE filename = ? COLLATE NOCASE`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *Catalog) List(ctx context.Context) ([]retrieval.DocumentInfo, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT filename, kind, chunk_count, added_at FROM documents ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []retrieval.DocumentInfo
	for rows.Next() {
		var d retrieval.DocumentInfo
		var kind sql.NullString
		var added sql.NullTime
		if err := rows.Scan(&d.Filename, &kind, &d.ChunkCount, &added); err != nil {
			return nil, err
		}
		d.Kind = kind.String
		d.AddedAt = added.Time
		d.Available = true
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (c *Catalog) Chunks(ctx context.Context, source string) ([]retrieval.Chunk, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT id, filename, page, ordinal, content FROM chunks
		 WHERE filename = ? COLLATE NOCASE ORDER BY page, ordinal, id`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		var ch retrieval.Chunk
		if err := rows.Scan(&ch.ID, &ch.Source, &ch.Page, &ch.Ordinal, &ch.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

func (c *Catalog) Close() error {
	return c.DB.Close()
}
