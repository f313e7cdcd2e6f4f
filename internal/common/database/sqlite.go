package database

import (
	"database/sql"
	"fmt"

	"hiring-pipeline/internal/common/config"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the local preference database used by pipelinectl and
// enables foreign keys.
func OpenSQLite(cfg config.SQLiteConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.Path, err)
	}
	// a single writer avoids SQLITE_BUSY from concurrent CLI goroutines
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	return db, nil
}
