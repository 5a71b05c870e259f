package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			identifier  TEXT PRIMARY KEY,
			total_score REAL NOT NULL,
			archetype   TEXT NOT NULL DEFAULT '',
			profile_url TEXT NOT NULL DEFAULT '',
			record      TEXT NOT NULL,
			analyzed_at TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS analyses_total_score ON analyses (total_score DESC)`,
	},
	upsert: `INSERT INTO analyses (identifier, total_score, archetype, profile_url, record, analyzed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier) DO UPDATE SET
			total_score = excluded.total_score,
			archetype   = excluded.archetype,
			profile_url = excluded.profile_url,
			record      = excluded.record,
			analyzed_at = excluded.analyzed_at,
			updated_at  = excluded.updated_at
		RETURNING created_at`,
	get: `SELECT record, created_at, updated_at FROM analyses WHERE identifier = ?`,
	top: `SELECT record, created_at, updated_at FROM analyses ORDER BY total_score DESC, identifier ASC LIMIT ?`,
}

// OpenSQLite opens (or creates) a SQLite database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, now func() time.Time) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set sqlite pragma: %w", err)
		}
	}

	s, err := newSQLStore(ctx, db, sqliteDialect, now)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
