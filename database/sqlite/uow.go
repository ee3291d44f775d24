package sqlite

import (
	"context"
	"fmt"

	"database/sql"

	"blobgate"
)

// UnitOfWork opens transaction scopes over the shared SQLite handle, used when
// metadata and content live in the same database.
type UnitOfWork struct {
	db *sql.DB
}

func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Begin(ctx context.Context) (blobgate.WorkScope, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &workScope{tx: tx}, nil
}

type workScope struct {
	tx *sql.Tx
}

func (s *workScope) Metadata() blobgate.MetadataRepo {
	return &Repo{q: s.tx}
}

func (s *workScope) Commit(_ context.Context) error {
	return s.tx.Commit()
}

func (s *workScope) Rollback(_ context.Context) error {
	return s.tx.Rollback()
}
