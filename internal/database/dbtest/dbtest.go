// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/internal/database"
	"pharmapos/m/internal/migrations"
)

// New returns a migrated database stored under t.TempDir and closed on cleanup.
func New(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "pos.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := database.Connect("sqlite", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
