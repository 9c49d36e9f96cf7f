package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"usersapp/internal/config"
)

// NewSQLite opens a sqlite database at path (":memory:" works) and applies
// migrations. sqlite allows one writer, so the pool is pinned to a single
// connection.
func NewSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := Migrate(ctx, db, config.DriverSQLite); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
