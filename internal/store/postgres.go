package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			identifier  TEXT PRIMARY KEY,
			total_score DOUBLE PRECISION NOT NULL,
			archetype   TEXT NOT NULL DEFAULT '',
			profile_url TEXT NOT NULL DEFAULT '',
			record      JSONB NOT NULL,
			analyzed_at TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS analyses_total_score ON analyses (total_score DESC)`,
	},
	upsert: `INSERT INTO analyses (identifier, total_score, archetype, profile_url, record, analyzed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (identifier) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			archetype   = EXCLUDED.archetype,
			profile_url = EXCLUDED.profile_url,
			record      = EXCLUDED.record,
			analyzed_at = EXCLUDED.analyzed_at,
			updated_at  = EXCLUDED.updated_at
		RETURNING created_at`,
	get: `SELECT record::text, created_at, updated_at FROM analyses WHERE identifier = $1`,
	top: `SELECT record::text, created_at, updated_at FROM analyses ORDER BY total_score DESC, identifier ASC LIMIT $1`,
}

// OpenPostgres connects to PostgreSQL and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string, now func() time.Time) (Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := newSQLStore(ctx, db, postgresDialect, now)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
