// Package store implements the two SQLite-backed persistence layers
// SPEC_FULL.md §4.7 names as components H and I: ConfigStore for
// URLConfiguration rows, MappingStore for URLMapping rows. Both share the
// open/pragma/schema-create shape of hector's pkg/memory/session_service_sql.go
// and pkg/agent/task_service_sql.go: one *sql.DB per store limited to a
// single open connection (so reads and writes are serialized through it),
// WAL journal mode, a single-writer mutex, TEXT columns for JSON blobs.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// open opens a SQLite database at path and puts it in WAL mode, matching
// SPEC_FULL.md §4.7 ("SQLite WAL mode is recommended").
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL on %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign_keys on %s: %w", path, err)
	}
	return db, nil
}

// nowFunc is overridable in tests so created_at/updated_at ordering can be
// asserted deterministically, mirroring the ratelimit package's injectable
// clock.
var nowFunc = func() time.Time { return time.Now().UTC() }
