// Package postgres implements the metadata repository, the database content
// store, and the unit-of-work over PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blobgate"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx, so the same repository
// code serves both direct calls and unit-of-work scopes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the PostgreSQL metadata repository. Rows are write-once.
type Repo struct {
	q querier
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{q: pool}
}

func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.q.QueryRow(ctx,
		`SELECT 1 FROM blob_metadata WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
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

	_, err = r.q.Exec(ctx,
		`INSERT INTO blob_metadata (id, size, created_at, backend, checksum)
		VALUES ($1, $2, $3, $4, $5)`,
		meta.ID, meta.Size, meta.CreatedAt.UTC(), string(meta.Backend), meta.Checksum,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create: %w: metadata already exists", blobgate.ErrConflict)
		}
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (blobgate.BlobMetadata, error) {
	var m blobgate.BlobMetadata
	var backend string

	err := r.q.QueryRow(ctx,
		`SELECT id, size, created_at, backend, checksum
		FROM blob_metadata WHERE id = $1`, id).Scan(
		&m.ID, &m.Size, &m.CreatedAt, &backend, &m.Checksum,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return blobgate.BlobMetadata{}, blobgate.ErrNotFound
	}
	if err != nil {
		return blobgate.BlobMetadata{}, fmt.Errorf("get: %w", err)
	}

	m.Backend = blobgate.Backend(backend)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
