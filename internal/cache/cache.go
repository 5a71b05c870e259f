// Package cache keeps normalized raw profiles for a bounded time so repeated
// analyses of the same developer do not hit the upstream API again.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/gh-profiler/internal/profile"
)

const (
	DefaultTTL         = time.Hour
	DefaultHardTimeout = 2 * time.Minute
	sweepInterval      = time.Minute
)

// Fetcher loads a fresh raw profile from upstream.
type Fetcher func(ctx context.Context, id profile.Identifier) (*profile.RawProfile, error)

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// HardTimeout bounds a shared fetch that keeps running after its waiters gave up.
	HardTimeout time.Duration
	// ServeStaleOnError returns the last known profile when a refetch fails,
	// unless that profile was invalidated.
	ServeStaleOnError bool
	Now               func() time.Time
	Logger            *zap.Logger
}

// Entry is a cached profile with its validity window.
type Entry struct {
	Profile   *profile.RawProfile
	FetchedAt time.Time
	ExpiresAt time.Time
	Valid     bool
}

func (e *Entry) fresh(now time.Time) bool {
	return e != nil && e.Valid && now.Before(e.ExpiresAt)
}

type slot struct {
	mu    sync.RWMutex
	entry *Entry
}

// Cache is a TTL cache with per-identifier single-flight fetching.
type Cache struct {
	ttl         time.Duration
	hardTimeout time.Duration
	serveStale  bool
	now         func() time.Time
	logger      *zap.Logger

	group singleflight.Group
	slots sync.Map // profile.Identifier -> *slot
}

// New creates a cache. Zero options fall back to defaults.
func New(opts Options) *Cache {
	c := &Cache{
		ttl:         opts.TTL,
		hardTimeout: opts.HardTimeout,
		serveStale:  opts.ServeStaleOnError,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.hardTimeout <= 0 {
		c.hardTimeout = DefaultHardTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// GetOrFetch returns the cached profile for id while it is fresh and valid.
// Otherwise fetch runs once per identifier no matter how many callers wait for it.
// A caller whose ctx ends gets a Timeout error; the shared fetch keeps going for
// the remaining waiters until HardTimeout.
func (c *Cache) GetOrFetch(ctx context.Context, id profile.Identifier, fetch Fetcher) (*profile.RawProfile, error) {
	if entry := c.load(id); entry.fresh(c.now()) {
		c.logger.Debug("cache hit", zap.String("identifier", id.String()), zap.Time("expires_at", entry.ExpiresAt))
		return entry.Profile.Clone(), nil
	}

	c.logger.Debug("cache miss", zap.String("identifier", id.String()))

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(id), func() (any, error) {
		return c.refresh(detached, id, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*profile.RawProfile).Clone(), nil
	case <-ctx.Done():
		return nil, &profile.Error{
			Kind:       profile.KindTimeout,
			Op:         "fetch profile",
			Identifier: id,
			Err:        ctx.Err(),
		}
	}
}

func (c *Cache) refresh(ctx context.Context, id profile.Identifier, fetch Fetcher) (*profile.RawProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.hardTimeout)
	defer cancel()

	// A flight that finished right before this one started may already have stored it.
	if entry := c.load(id); entry.fresh(c.now()) {
		return entry.Profile, nil
	}

	raw, err := fetch(ctx, id)
	if err != nil {
		// Invalidated entries are never served, stale or not.
		if stale := c.load(id); c.serveStale && stale != nil && stale.Valid {
			c.logger.Warn("serving stale profile after fetch failure",
				zap.String("identifier", id.String()),
				zap.Time("fetched_at", stale.FetchedAt),
				zap.Error(err),
			)
			return stale.Profile, nil
		}
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("fetcher returned no profile for %s", id)
	}

	return c.store(id, raw), nil
}

func (c *Cache) slot(id profile.Identifier) *slot {
	s, _ := c.slots.LoadOrStore(id, &slot{})
	return s.(*slot)
}

func (c *Cache) load(id profile.Identifier) *Entry {
	v, ok := c.slots.Load(id)
	if !ok {
		return nil
	}
	s := v.(*slot)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return nil
	}
	entry := *s.entry
	return &entry
}

func (c *Cache) store(id profile.Identifier, raw *profile.RawProfile) *profile.RawProfile {
	now := c.now()
	owned := raw.Clone()

	s := c.slot(id)
	s.mu.Lock()
	s.entry = &Entry{
		Profile:   owned,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Valid:     true,
	}
	s.mu.Unlock()

	c.logger.Debug("cached profile",
		zap.String("identifier", id.String()),
		zap.Int("repositories", len(owned.Repositories)),
		zap.Duration("ttl", c.ttl),
	)

	return owned
}

// Invalidate marks the entry for id as invalid regardless of its expiry.
func (c *Cache) Invalidate(id profile.Identifier) {
	v, ok := c.slots.Load(id)
	if !ok {
		return
	}
	s := v.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != nil {
		s.entry.Valid = false
		c.logger.Debug("cache entry invalidated", zap.String("identifier", id.String()))
	}
}

// Sweep drops entries that have been expired for longer than one TTL. Stale
// entries younger than that stay around for ServeStaleOnError.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0
	c.slots.Range(func(_, value any) bool {
		s := value.(*slot)
		s.mu.Lock()
		if s.entry != nil && now.After(s.entry.ExpiresAt.Add(c.ttl)) {
			s.entry = nil
			removed++
		}
		s.mu.Unlock()
		return true
	})
	if removed > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
