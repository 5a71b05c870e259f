// Package store persists assembled analysis records, one per identifier.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/gh-profiler/internal/profile"
)

// ErrNotFound is returned when no record exists for an identifier.
var ErrNotFound = errors.New("analysis record not found")

// Store is the persistence collaborator.
type Store interface {
	// Upsert inserts or replaces the record for rec.Identifier. CreatedAt of an
	// existing record is kept; UpdatedAt is refreshed. Both are written back to rec.
	Upsert(ctx context.Context, rec *profile.AnalysisRecord) error
	GetByIdentifier(ctx context.Context, id profile.Identifier) (*profile.AnalysisRecord, error)
	// TopN returns up to n records ordered by total score, highest first.
	TopN(ctx context.Context, n int) ([]*profile.AnalysisRecord, error)
	Close() error
}

// Open picks an implementation from the DSN:
// empty or "memory" keeps records in process,
// postgres:// and postgresql:// use PostgreSQL,
// anything else is treated as a SQLite path (an optional sqlite:// prefix is stripped).
func Open(ctx context.Context, dsn string, now func() time.Time) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(now), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn, now)
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("empty sqlite path in %q", dsn)
		}
		return OpenSQLite(ctx, path, now)
	}
}
