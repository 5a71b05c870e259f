package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/spigell/gh-profiler/internal/profile"
)

// Memory keeps records in a map. Used when no database is configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	records map[profile.Identifier]*profile.AnalysisRecord
	now     func() time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{records: make(map[profile.Identifier]*profile.AnalysisRecord), now: now}
}

func (m *Memory) Upsert(_ context.Context, rec *profile.AnalysisRecord) error {
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.CreatedAt = now
	if existing, ok := m.records[rec.Identifier]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	rec.UpdatedAt = now
	m.records[rec.Identifier] = rec.Clone()
	return nil
}

func (m *Memory) GetByIdentifier(_ context.Context, id profile.Identifier) (*profile.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) TopN(_ context.Context, n int) ([]*profile.AnalysisRecord, error) {
	if n <= 0 {
		return []*profile.AnalysisRecord{}, nil
	}

	m.mu.RLock()
	out := make([]*profile.AnalysisRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, compareByScore)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func compareByScore(a, b *profile.AnalysisRecord) int {
	if c := cmp.Compare(b.Scores.Total, a.Scores.Total); c != 0 {
		return c
	}
	return cmp.Compare(a.Identifier, b.Identifier)
}
