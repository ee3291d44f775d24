// Package database provides a unified entrypoint for the metadata store and
// the database content backend.
//
// Both supported engines expose the same three capabilities: a metadata
// repository, a blob content store, and a unit-of-work for the case where the
// active content backend is the database itself. Connect opens the engine,
// runs migrations, and returns them bundled.
//
//   - PostgreSQL: production backend using a pgx connection pool
//   - SQLite: lightweight backend for development and single-node deployments
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	_ "modernc.org/sqlite" // SQLite driver

	"blobgate"
	"blobgate/database/postgres"
	"blobgate/database/sqlite"
)

// Config holds the configuration for connecting to a database engine.
type Config struct {
	// Type specifies the engine: "sqlite" or "postgres"
	Type string `mapstructure:"type"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn"`
}

// Handle bundles the capabilities one database connection provides.
type Handle struct {
	Metadata blobgate.MetadataRepo
	// Blobs is the database content adapter, used when the active backend
	// is "db".
	Blobs blobgate.Storage
	// UnitOfWork spans metadata writes; wired into the service only for the
	// "db" backend, where metadata and content share this store.
	UnitOfWork blobgate.UnitOfWork

	close func()
}

// Close releases the underlying connection or pool.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Connect opens the configured engine, verifies connectivity, and runs
// migrations.
func Connect(ctx context.Context, cfg Config) (*Handle, error) {
	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectSQLite(ctx context.Context, dsn string) (*Handle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &Handle{
		Metadata:   sqlite.NewRepo(db),
		Blobs:      sqlite.NewBlobStore(db),
		UnitOfWork: sqlite.NewUnitOfWork(db),
		close:      func() { _ = db.Close() },
	}, nil
}

func connectPostgres(ctx context.Context, dsn string) (*Handle, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &Handle{
		Metadata:   postgres.NewRepo(pool),
		Blobs:      postgres.NewBlobStore(pool),
		UnitOfWork: postgres.NewUnitOfWork(pool),
		close:      pool.Close,
	}, nil
}
