package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blobgate"
)

// BlobStore is the SQLite content adapter. The existence check and the insert
// run inside one transaction; a uniqueness violation at commit time is treated
// identically to a pre-observed conflict.
type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (b *BlobStore) Save(ctx context.Context, id string, data []byte) (blobgate.SaveResult, error) {
	if data == nil {
		// A nil slice binds as SQL NULL and trips the NOT NULL constraint;
		// zero-byte content is a valid blob.
		data = []byte{}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: begin: %w", id, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("blob store rollback failed", "id", id, "err", rbErr)
			}
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM blob_data WHERE id = ?`, id).Scan(&one)
	if err == nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: check existing: %w", id, err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO blob_data (id, data, created_at) VALUES (?, ?, ?)`,
		id, data, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
		}
		return blobgate.SaveResult{}, fmt.Errorf("save %q: insert: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
		}
		return blobgate.SaveResult{}, fmt.Errorf("save %q: commit: %w", id, err)
	}
	committed = true

	return blobgate.SaveResult{Size: int64(len(data)), CreatedAt: now}, nil
}

func (b *BlobStore) Get(ctx context.Context, id string) (blobgate.Object, error) {
	var data []byte
	var createdAt string

	err := b.db.QueryRowContext(ctx,
		`SELECT data, created_at FROM blob_data WHERE id = ?`, id).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, blobgate.ErrNotFound)
	}
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: parse created_at: %w", id, err)
	}

	return blobgate.Object{Data: data, Size: int64(len(data)), CreatedAt: t.UTC()}, nil
}

// Delete removes blob content; a missing row is not an error.
func (b *BlobStore) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM blob_data WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}
