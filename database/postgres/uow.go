package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blobgate"
)

// UnitOfWork opens transaction scopes over the shared pool, used when
// metadata and content live in the same database.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

func (u *UnitOfWork) Begin(ctx context.Context) (blobgate.WorkScope, error) {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &workScope{tx: tx}, nil
}

type workScope struct {
	tx pgx.Tx
}

func (s *workScope) Metadata() blobgate.MetadataRepo {
	return &Repo{q: s.tx}
}

func (s *workScope) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx)
}

func (s *workScope) Rollback(ctx context.Context) error {
	return s.tx.Rollback(ctx)
}
