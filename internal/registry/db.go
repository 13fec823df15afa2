// Package registry provides a persisted audit trail of kernel activity —
// completed commands, port registrations, and mark consumption — keyed by
// component instance. It uses pure-Go SQLite (modernc.org/sqlite), no cgo
// required. The kernel itself never depends on this package; it is wired
// up by the daemon as an EventSink-adjacent observer.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database for the kernel's audit registry.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	rdb := &DB{db: db}
	if err := rdb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return rdb, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS components (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS port_registrations (
			component_id TEXT NOT NULL,
			port_index   INTEGER NOT NULL,
			direction    TEXT NOT NULL,
			domain       TEXT NOT NULL,
			is_config    INTEGER NOT NULL DEFAULT 0,
			registered_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (component_id, port_index)
		)`,
		`CREATE TABLE IF NOT EXISTS command_log (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			component_id TEXT NOT NULL,
			command      TEXT NOT NULL,
			port         INTEGER NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			completed_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS mark_log (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			component_id    TEXT NOT NULL,
			port            INTEGER NOT NULL,
			target_component TEXT NOT NULL DEFAULT '',
			error           TEXT NOT NULL DEFAULT '',
			consumed_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_command_log_component ON command_log(component_id)`,
		`CREATE INDEX IF NOT EXISTS idx_mark_log_component ON mark_log(component_id)`,
	}
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
