package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of idempotent SQL statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS config_revisions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		version    TEXT    NOT NULL UNIQUE,
		changes    TEXT    NOT NULL DEFAULT '',
		source     TEXT    NOT NULL DEFAULT '' CHECK (source IN ('', 'cli', 'web')),
		document   TEXT    NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_config_revisions_created_at ON config_revisions (created_at)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
