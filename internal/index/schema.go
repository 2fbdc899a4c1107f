package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever the table layout changes. A store with a
// different version is dropped and recreated on open; the next full scan
// repopulates it.
const schemaVersion = "1"

const createFilesTable = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,                       -- absolute source path
    scanned_at TEXT NOT NULL                     -- RFC 3339 time of extraction
)
`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
    path TEXT NOT NULL,
    seq INTEGER NOT NULL,                        -- position in the file's ordered record list
    kind TEXT NOT NULL,                          -- class, function, property, constant
    name TEXT NOT NULL,
    class TEXT NOT NULL DEFAULT '',              -- declaring class, '' for free functions
    flavor TEXT NOT NULL DEFAULT '',
    extends TEXT NOT NULL DEFAULT '[]',          -- JSON array of class names
    implements TEXT NOT NULL DEFAULT '[]',
    traits TEXT NOT NULL DEFAULT '[]',
    args TEXT NOT NULL DEFAULT '[]',             -- JSON array of {name, type}
    returns TEXT NOT NULL DEFAULT '',
    visibility TEXT NOT NULL DEFAULT 'public',
    is_static INTEGER NOT NULL DEFAULT 0,
    start_pos INTEGER NOT NULL DEFAULT 0,
    end_pos INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (path, seq),
    FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
)
`

const createClassLocationsTable = `
CREATE TABLE IF NOT EXISTS class_locations (
    class TEXT NOT NULL,
    path TEXT NOT NULL,
    PRIMARY KEY (class, path)
)
`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS index_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_symbols_class ON symbols(class)",
	"CREATE INDEX IF NOT EXISTS idx_class_locations_path ON class_locations(path)",
}

// Metadata keys.
const (
	metaSchemaVersion = "schema_version"
	metaScanID        = "scan_id"
	metaLastScan      = "last_scan"
)

// createSchema creates all tables in one transaction. It is idempotent.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"files", createFilesTable},
		{"symbols", createSymbolsTable},
		{"class_locations", createClassLocationsTable},
		{"index_metadata", createMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}
	for i, idx := range indexes {
		if _, err := tx.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_metadata (key, value, updated_at) VALUES (?, ?, ?)`,
		metaSchemaVersion, schemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to bootstrap index_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// storedSchemaVersion returns the version recorded in the store, or "0" for
// a database without the metadata table.
func storedSchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='index_metadata'",
	).Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check index_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRowContext(ctx,
		"SELECT value FROM index_metadata WHERE key = ?", metaSchemaVersion,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// dropSchema removes every table so createSchema can start over.
func dropSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"symbols", "files", "class_locations", "index_metadata"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
	}
	return nil
}
