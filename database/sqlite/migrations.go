package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []struct {
	name string
	up   string
	down string
}{
	{
		name: "blob_metadata",
		up: `CREATE TABLE IF NOT EXISTS blob_metadata (
			id TEXT NOT NULL PRIMARY KEY,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			backend TEXT NOT NULL,
			checksum TEXT NOT NULL
		)`,
		down: `DROP TABLE IF EXISTS blob_metadata`,
	},
	{
		name: "blob_data",
		up: `CREATE TABLE IF NOT EXISTS blob_data (
			id TEXT NOT NULL PRIMARY KEY,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		down: `DROP TABLE IF EXISTS blob_data`,
	},
}

// Migrate creates the metadata and content tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.up); err != nil {
			return fmt.Errorf("migrate up %s: %w", m.name, err)
		}
	}
	return nil
}

// DropTables removes the schema; used by tests.
func DropTables(ctx context.Context, db *sql.DB) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, migrations[i].down); err != nil {
			return fmt.Errorf("migrate down %s: %w", migrations[i].name, err)
		}
	}
	return nil
}
