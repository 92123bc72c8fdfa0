package database

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Connect opens the database for driver ("sqlite" or "pgx") using the provided DSN.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if IsSQLite(db) {
		// SQLite has a single writer; transactions queue on one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
	}
	return db, nil
}

func IsSQLite(db interface{ DriverName() string }) bool {
	return db.DriverName() == "sqlite"
}
