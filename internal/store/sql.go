package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/gh-profiler/internal/profile"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name   string
	schema []string
	upsert string
	get    string
	top    string
}

// sqlStore implements Store over database/sql. Timestamps are stored as
// RFC3339 text so both backends sort and scan them the same way.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, now func() time.Time) (*sqlStore, error) {
	if now == nil {
		now = time.Now
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", d.name, err)
		}
	}
	return &sqlStore{db: db, dialect: d, now: now}, nil
}

func (s *sqlStore) Upsert(ctx context.Context, rec *profile.AnalysisRecord) error {
	now := s.now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal analysis record: %w", err)
	}

	var createdAt string
	err = s.db.QueryRowContext(ctx, s.dialect.upsert,
		rec.Identifier.String(),
		rec.Scores.Total,
		rec.Insights.Archetype,
		rec.ProfileURL(),
		string(payload),
		formatTime(rec.AnalyzedAt),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("upsert analysis for %s: %w", rec.Identifier, err)
	}

	if created, err := parseTime(createdAt); err == nil {
		rec.CreatedAt = created
	}
	return nil
}

func (s *sqlStore) GetByIdentifier(ctx context.Context, id profile.Identifier) (*profile.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.get, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis for %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqlStore) TopN(ctx context.Context, n int) ([]*profile.AnalysisRecord, error) {
	if n <= 0 {
		return []*profile.AnalysisRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.top, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]*profile.AnalysisRecord, 0, n)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*profile.AnalysisRecord, error) {
	var payload, createdAt, updatedAt string
	if err := row.Scan(&payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var rec profile.AnalysisRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode analysis record: %w", err)
	}
	if t, err := parseTime(createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
