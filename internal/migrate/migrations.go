// Package migrate brings the workspace database schema up to date from
// the SQL files embedded under sql/. Files are named NNNN_description.sql
// and applied in version order.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Migrate applies every embedded migration newer than the recorded
// schema version, all inside one transaction. On an up-to-date database
// it is a no-op, so every open may call it.
func Migrate(db *sql.DB) error {
	names, err := fs.Glob(schemaFS, "sql/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}
		script, err := schemaFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(script)); err != nil {
			return fmt.Errorf("apply %s: %w", path.Base(name), err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, version); err != nil {
			return fmt.Errorf("record version %d: %w", version, err)
		}
		current = version
	}
	return tx.Commit()
}

// schemaVersion reads the recorded version, creating the bookkeeping
// table on a fresh database.
func schemaVersion(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var version int
	err := tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("init schema_version: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}

// migrationVersion extracts the numeric prefix of NNNN_description.sql.
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: missing NNNN_ prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return version, nil
}
