package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blobgate"
)

// BlobStore is the PostgreSQL content adapter. The existence check and the
// insert run inside one transaction; a uniqueness violation at commit time is
// treated identically to a pre-observed conflict. The creation timestamp is
// server-recorded.
type BlobStore struct {
	pool *pgxpool.Pool
}

func NewBlobStore(pool *pgxpool.Pool) *BlobStore {
	return &BlobStore{pool: pool}
}

func (b *BlobStore) Save(ctx context.Context, id string, data []byte) (blobgate.SaveResult, error) {
	if data == nil {
		// A nil slice binds as SQL NULL and trips the NOT NULL constraint;
		// zero-byte content is a valid blob.
		data = []byte{}
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: begin: %w", id, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("blob store rollback failed", "id", id, "err", rbErr)
			}
		}
	}()

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM blob_data WHERE id = $1`, id).Scan(&one)
	if err == nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: check existing: %w", id, err)
	}

	var saved blobgate.SaveResult
	err = tx.QueryRow(ctx,
		`INSERT INTO blob_data (id, data) VALUES ($1, $2) RETURNING created_at`,
		id, data,
	).Scan(&saved.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
		}
		return blobgate.SaveResult{}, fmt.Errorf("save %q: insert: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
		}
		return blobgate.SaveResult{}, fmt.Errorf("save %q: commit: %w", id, err)
	}
	committed = true

	saved.Size = int64(len(data))
	saved.CreatedAt = saved.CreatedAt.UTC()
	return saved, nil
}

func (b *BlobStore) Get(ctx context.Context, id string) (blobgate.Object, error) {
	var obj blobgate.Object

	err := b.pool.QueryRow(ctx,
		`SELECT data, created_at FROM blob_data WHERE id = $1`, id).Scan(&obj.Data, &obj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, blobgate.ErrNotFound)
	}
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, err)
	}

	obj.Size = int64(len(obj.Data))
	obj.CreatedAt = obj.CreatedAt.UTC()
	return obj, nil
}

// Delete removes blob content; a missing row is not an error.
func (b *BlobStore) Delete(ctx context.Context, id string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM blob_data WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}
