package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []struct {
	name string
	up   string
	down string
}{
	{
		name: "blob_metadata",
		up: `CREATE TABLE IF NOT EXISTS blob_metadata (
			id VARCHAR(512) NOT NULL PRIMARY KEY,
			size BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			backend VARCHAR(50) NOT NULL,
			checksum VARCHAR(128) NOT NULL
		)`,
		down: `DROP TABLE IF EXISTS blob_metadata`,
	},
	{
		name: "blob_data",
		up: `CREATE TABLE IF NOT EXISTS blob_data (
			id VARCHAR(512) NOT NULL PRIMARY KEY,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		down: `DROP TABLE IF EXISTS blob_data`,
	},
}

// Migrate creates the metadata and content tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.up); err != nil {
			return fmt.Errorf("migrate up %s: %w", m.name, err)
		}
	}
	return nil
}

// DropTables removes the schema; used by tests.
func DropTables(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, migrations[i].down); err != nil {
			return fmt.Errorf("migrate down %s: %w", migrations[i].name, err)
		}
	}
	return nil
}
