package store

import (
	"database/sql"
	"fmt"

	"github.com/frecency-dev/frecency/internal/store/storedefs"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "paths: visit statistics per filesystem path",
		SQL: `
CREATE TABLE paths (
    path               TEXT PRIMARY KEY,
    visit_count        INTEGER NOT NULL CHECK (visit_count >= 1),
    last_visit_millis  INTEGER NOT NULL
);

CREATE INDEX idx_paths_last_visit ON paths(last_visit_millis DESC);
`,
	},
}

// EnsureSchema creates the tables and indexes if absent. Applied migrations
// are recorded in schema_versions, so repeated calls are no-ops.
func (db *DB) EnsureSchema() error {
	return storedefs.Wrap("ensure schema", db.migrate())
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		err := transaction(db.DB, func(tx *sql.Tx) error {
			var count int
			err := tx.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
			if err != nil {
				return fmt.Errorf("check migration %d: %w", m.Version, err)
			}
			if count > 0 {
				return nil
			}
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
				m.Version, m.Description,
			); err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the current schema version, or 0 if the store has not
// been initialized.
func (db *DB) SchemaVersion() (int, error) {
	ok, err := tableExists(db.DB, "schema_versions")
	if err != nil || !ok {
		return 0, storedefs.Wrap("schema version", err)
	}
	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, storedefs.Wrap("schema version", err)
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func tableExists(q queryer, name string) (bool, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

// checkSchema returns storedefs.ErrSchemaMissing if the paths table does not
// exist yet.
func checkSchema(q queryer) error {
	ok, err := tableExists(q, "paths")
	if err != nil {
		return err
	}
	if !ok {
		return storedefs.ErrSchemaMissing
	}
	return nil
}
