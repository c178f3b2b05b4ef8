// Package store persists document records in SQLite, keyed by relative path.
// Document ids are assigned by the database on first insert and kept stable
// across re-indexing of the same path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	pkgerrors "mdsearch/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS docs (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    path    TEXT NOT NULL UNIQUE,
    title   TEXT NOT NULL,
    summary TEXT NOT NULL,
    body    TEXT NOT NULL,
    mtime   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_docs_path ON docs(path);
`

// Document is a stored document record.
type Document struct {
	ID      int64     `json:"id"`
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
	Body    string    `json:"-"`
	MTime   time.Time `json:"mtime"`
}

// Store wraps the SQLite document table.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and initialises the
// schema. WAL mode keeps concurrent readers from blocking the writer.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// A single connection sidesteps SQLITE_BUSY between the syncer's writes
	// and query-time reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert inserts or updates the record for doc.Path and returns its id. An
// existing row keeps its id; only the mutable fields are overwritten.
func (s *Store) Upsert(ctx context.Context, doc *Document) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO docs (path, title, summary, body, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title   = excluded.title,
			summary = excluded.summary,
			body    = excluded.body,
			mtime   = excluded.mtime`,
		doc.Path, doc.Title, doc.Summary, doc.Body, doc.MTime.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("upserting document %s: %w", doc.Path, err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM docs WHERE path = ?`, doc.Path,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolving id for %s: %w", doc.Path, err)
	}
	doc.ID = id
	return id, nil
}

// Delete removes the record for path, returning its id and whether a record
// existed. Deleting an unknown path is a no-op.
func (s *Store) Delete(ctx context.Context, path string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM docs WHERE path = ?`, path,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving document %s: %w", path, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id); err != nil {
		return 0, false, fmt.Errorf("deleting document %s: %w", path, err)
	}
	return id, true, nil
}

// GetByID returns the document with the given id, or ErrDocumentNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*Document, error) {
	return s.get(ctx, `SELECT id, path, title, summary, body, mtime FROM docs WHERE id = ?`, id)
}

// GetByPath returns the document stored under path, or ErrDocumentNotFound.
func (s *Store) GetByPath(ctx context.Context, path string) (*Document, error) {
	return s.get(ctx, `SELECT id, path, title, summary, body, mtime FROM docs WHERE path = ?`, path)
}

func (s *Store) get(ctx context.Context, query string, arg any) (*Document, error) {
	var doc Document
	var mtime int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&doc.ID, &doc.Path, &doc.Title, &doc.Summary, &doc.Body, &mtime,
	)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	doc.MTime = time.Unix(0, mtime)
	return &doc, nil
}

// List returns all stored documents ordered by id.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, title, summary, body, mtime FROM docs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var mtime int64
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.Summary, &doc.Body, &mtime); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.MTime = time.Unix(0, mtime)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Clear deletes every document record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM docs`); err != nil {
		return fmt.Errorf("clearing document table: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
