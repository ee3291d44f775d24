// Package sqlite implements the metadata repository, the database content
// store, and the unit-of-work over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"blobgate"
)

// executor is satisfied by *sql.DB and *sql.Tx, so the same repository code
// serves both direct calls and unit-of-work scopes.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo is the SQLite metadata repository. Rows are write-once.
type Repo struct {
	q executor
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{q: db}
}

func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM blob_metadata WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// Create inserts a metadata row. The pre-check keeps the common duplicate path
// cheap; the primary-key constraint closes the race between check and insert.
func (r *Repo) Create(ctx context.Context, meta blobgate.BlobMetadata) error {
	exists, err := r.Exists(ctx, meta.ID)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if exists {
		return fmt.Errorf("create: %w: metadata already exists", blobgate.ErrConflict)
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO blob_metadata (id, size, created_at, backend, checksum)
		VALUES (?, ?, ?, ?, ?)`,
		meta.ID, meta.Size, meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(meta.Backend), meta.Checksum,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("create: %w: metadata already exists", blobgate.ErrConflict)
		}
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (blobgate.BlobMetadata, error) {
	var m blobgate.BlobMetadata
	var createdAt, backend string

	err := r.q.QueryRowContext(ctx,
		`SELECT id, size, created_at, backend, checksum
		FROM blob_metadata WHERE id = ?`, id).Scan(
		&m.ID, &m.Size, &createdAt, &backend, &m.Checksum,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return blobgate.BlobMetadata{}, blobgate.ErrNotFound
	}
	if err != nil {
		return blobgate.BlobMetadata{}, fmt.Errorf("get: %w", err)
	}

	m.Backend = blobgate.Backend(backend)
	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return blobgate.BlobMetadata{}, fmt.Errorf("get: parse created_at: %w", err)
	}

	return m, nil
}

// isConstraintViolation reports whether err is a SQLite uniqueness or
// primary-key constraint failure.
func isConstraintViolation(err error) bool {
	var serr *sqlitedrv.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT,
		sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
