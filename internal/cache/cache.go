// Package cache provides a TTL cache with score-based eviction and a bounded
// fetch gate, shared by the catalog accessor and the recommender.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/chatcheckout/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFetchTimeout bounds a single fetch.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMaxEntries is used when Options.MaxEntries is not set.
	DefaultMaxEntries = 500
	// DefaultSweepInterval is the period of the expiry sweep.
	DefaultSweepInterval = time.Minute
)

// ErrFetchTimeout is returned when a fetch exceeds the configured timeout.
var ErrFetchTimeout = errors.New("cache fetch timed out")

// FetchFunc loads the value for a key on a miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Entry wraps a cached value with its bookkeeping.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
	ExpiresAt  time.Time
	LastAccess time.Time
	Hits       int64
}

// Expired reports whether the entry must be treated as absent at now.
func (e *Entry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// score is hits per second since last access; the lowest score is evicted first.
func (e *Entry[V]) score(now time.Time) float64 {
	idle := now.Sub(e.LastAccess).Seconds()
	if idle < 0.001 {
		idle = 0.001
	}
	return float64(e.Hits) / idle
}

// Options configures a Cache.
type Options struct {
	Name         string
	MaxEntries   int
	FetchTimeout time.Duration
	Gate         *Gate
	Logger       *slog.Logger
	Now          func() time.Time
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Stale     int64 `json:"stale"`
	Evictions int64 `json:"evictions"`
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	name         string
	maxEntries   int
	fetchTimeout time.Duration
	gate         *Gate
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry[V]
	stats   Stats

	group singleflight.Group
}

// New creates a cache from opts, filling defaults.
func New[V any](opts Options) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Gate == nil {
		opts.Gate = NewGate(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Cache[V]{
		name:         opts.Name,
		maxEntries:   opts.MaxEntries,
		fetchTimeout: opts.FetchTimeout,
		gate:         opts.Gate,
		logger:       opts.Logger,
		now:          opts.Now,
		entries:      make(map[string]*Entry[V]),
	}
}

// GetOrFetch returns the cached value for key or loads it with fetch.
// On fetch failure a stale entry, if any, is returned instead of the error.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V], ttl time.Duration, forceRefresh bool) (V, error) {
	if !forceRefresh {
		if v, ok := c.lookup(key); ok {
			metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
			return v, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := c.fetch(ctx, fetch)
		if err != nil {
			return v, err
		}
		c.set(key, v, ttl)
		return v, nil
	})
	if err == nil {
		return res.(V), nil
	}

	if stale, ok := c.staleValue(key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "stale").Inc()
		c.logger.Warn("cache fetch failed, serving stale entry",
			"cache", c.name,
			"key", key,
			"error", err,
		)
		return stale, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "error").Inc()
	var zero V
	return zero, err
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || e.Expired(now) {
		var zero V
		return zero, false
	}
	e.Hits++
	e.LastAccess = now
	c.stats.Hits++
	return e.Value, true
}

func (c *Cache[V]) staleValue(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.stats.Stale++
	return e.Value, true
}

type fetchResult[V any] struct {
	v   V
	err error
}

// fetch runs fn behind the gate and abandons it once the timeout elapses,
// even if fn ignores its context. The gate slot stays taken until fn
// actually returns, so abandoned fetches still count against the limit.
func (c *Cache[V]) fetch(ctx context.Context, fn FetchFunc[V]) (V, error) {
	var zero V
	if err := c.gate.Acquire(ctx); err != nil {
		return zero, err
	}

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	done := make(chan fetchResult[V], 1)
	go func() {
		v, err := fn(fctx)
		c.gate.Release()
		done <- fetchResult[V]{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-fctx.Done():
		if errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s after %s: %w", c.name, c.fetchTimeout, ErrFetchTimeout)
		}
		return zero, fctx.Err()
	}
}

// Set stores v under key for ttl.
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	c.set(key, v, ttl)
}

func (c *Cache[V]) set(key string, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.Value = v
		e.InsertedAt = now
		e.ExpiresAt = now.Add(ttl)
		e.LastAccess = now
		return
	}
	for len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = &Entry[V]{
		Value:      v,
		InsertedAt: now,
		ExpiresAt:  now.Add(ttl),
		LastAccess: now,
	}
}

// evictLocked removes one entry: an expired one if present, otherwise the
// entry with the lowest hits-per-idle-second score.
func (c *Cache[V]) evictLocked(now time.Time) {
	var (
		victim    string
		victimE   *Entry[V]
		bestScore float64
	)
	for k, e := range c.entries {
		if e.Expired(now) {
			victim = k
			break
		}
		s := e.score(now)
		if victimE == nil || s < bestScore || (s == bestScore && e.LastAccess.Before(victimE.LastAccess)) {
			victim, victimE, bestScore = k, e, s
		}
	}
	if victim == "" {
		return
	}
	delete(c.entries, victim)
	c.stats.Evictions++
	metrics.CacheEvictions.WithLabelValues(c.name, "capacity").Inc()
}

// Peek returns a copy of the entry without touching its counters.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return *e, true
}

// Invalidate drops key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.stats.Evictions += int64(removed)
		metrics.CacheEvictions.WithLabelValues(c.name, "expired").Add(float64(removed))
	}
	return removed
}

// Sweeper is anything with an expiry sweep.
type Sweeper interface {
	Sweep() int
}

// StartSweeper runs Sweep on every cache each interval until ctx is done.
func StartSweeper(ctx context.Context, interval time.Duration, caches ...Sweeper) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Cache sweeper started", "interval", interval, "caches", len(caches))

		for {
			select {
			case <-ticker.C:
				removed := 0
				for _, c := range caches {
					removed += c.Sweep()
				}
				if removed > 0 {
					slog.Debug("Cache sweeper removed expired entries", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Cache sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
