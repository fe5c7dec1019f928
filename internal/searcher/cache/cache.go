// Package cache shares flattened field queries across the hits of a request
// and across requests. Entries are only valid for the dictionary generation
// they were built against, so the generation is part of every key.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
)

const (
	keyPrefix         = "fieldquery:"
	defaultMaxEntries = 1024
)

// Remote is the shared second tier. *redis.Client satisfies it.
type Remote interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one flattened query.
type Key struct {
	Query      string
	FieldMatch bool
	Generation int64
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|fm=%t|gen=%d", k.Query, k.FieldMatch, k.Generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// BuildFunc flattens the query on a miss.
type BuildFunc func(ctx context.Context) (*query.FlatTermSet, error)

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits         int64 `json:"hits"`
	LocalHits    int64 `json:"local_hits"`
	RemoteHits   int64 `json:"remote_hits"`
	Misses       int64 `json:"misses"`
	Builds       int64 `json:"builds"`
	LocalEntries int   `json:"local_entries"`
	Generation   int64 `json:"generation"`
}

// FieldQueryCache is a two-tier cache: an in-process map in front of an
// optional Remote. Concurrent misses for the same key build once.
type FieldQueryCache struct {
	mu         sync.RWMutex
	local      map[string]*query.FlatTermSet
	generation int64
	maxEntries int

	remote  Remote
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	localHits  atomic.Int64
	remoteHits atomic.Int64
	misses     atomic.Int64
	builds     atomic.Int64
}

// New creates a cache. remote and m may be nil.
func New(remote Remote, cfg config.RedisConfig, m *metrics.Metrics) *FieldQueryCache {
	return &FieldQueryCache{
		local:      make(map[string]*query.FlatTermSet),
		maxEntries: defaultMaxEntries,
		remote:     remote,
		ttl:        cfg.CacheTTL,
		metrics:    m,
		logger:     slog.Default().With("component", "field-query-cache"),
	}
}

// GetOrBuild returns the cached set for key or builds it. Build errors are
// returned to every waiter and never cached. The bool reports a cache hit.
func (c *FieldQueryCache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*query.FlatTermSet, bool, error) {
	k := key.String()
	if set, ok := c.getLocal(k, key.Generation); ok {
		c.localHits.Add(1)
		c.observeHit("local")
		return set, true, nil
	}

	val, err, _ := c.group.Do(k, func() (any, error) {
		if set, ok := c.getLocal(k, key.Generation); ok {
			c.localHits.Add(1)
			c.observeHit("local")
			return lookup{set: set, hit: true}, nil
		}
		if set, ok := c.getRemote(ctx, k, key.FieldMatch); ok {
			c.remoteHits.Add(1)
			c.observeHit("redis")
			c.putLocal(k, key.Generation, set)
			return lookup{set: set, hit: true}, nil
		}
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		set, err := build(ctx)
		if err != nil {
			return nil, err
		}
		c.builds.Add(1)
		c.putLocal(k, key.Generation, set)
		c.putRemote(ctx, k, set)
		return lookup{set: set}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := val.(lookup)
	return res.set, res.hit, nil
}

type lookup struct {
	set *query.FlatTermSet
	hit bool
}

func (c *FieldQueryCache) observeHit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *FieldQueryCache) getLocal(k string, generation int64) (*query.FlatTermSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if generation != c.generation {
		return nil, false
	}
	set, ok := c.local[k]
	return set, ok
}

// putLocal stores set. A newer generation drops everything older; an older
// one is not stored at all.
func (c *FieldQueryCache) putLocal(k string, generation int64, set *query.FlatTermSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case generation < c.generation:
		return
	case generation > c.generation:
		c.local = make(map[string]*query.FlatTermSet)
		c.generation = generation
	}
	if len(c.local) >= c.maxEntries {
		c.local = make(map[string]*query.FlatTermSet)
	}
	c.local[k] = set
}

func (c *FieldQueryCache) getRemote(ctx context.Context, k string, fieldMatch bool) (*query.FlatTermSet, bool) {
	if c.remote == nil {
		return nil, false
	}
	set := query.NewFlatTermSet(fieldMatch)
	found, err := c.remote.GetJSON(ctx, k, set)
	if err != nil {
		c.logger.Warn("remote cache get failed", "key", k, "error", err)
		return nil, false
	}
	return set, found
}

func (c *FieldQueryCache) putRemote(ctx context.Context, k string, set *query.FlatTermSet) {
	if c.remote == nil {
		return
	}
	if err := c.remote.SetJSON(ctx, k, set, c.ttl); err != nil {
		c.logger.Warn("remote cache set failed", "key", k, "error", err)
	}
}

// Invalidate clears both tiers.
func (c *FieldQueryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	dropped := len(c.local)
	c.local = make(map[string]*query.FlatTermSet)
	c.mu.Unlock()

	var deleted int64
	if c.remote != nil {
		var err error
		deleted, err = c.remote.FlushByPattern(ctx, keyPrefix+"*")
		if err != nil {
			return fmt.Errorf("invalidating remote cache: %w", err)
		}
	}
	c.logger.Info("cache invalidated", "local_dropped", dropped, "remote_deleted", deleted)
	return nil
}

func (c *FieldQueryCache) Stats() Stats {
	c.mu.RLock()
	entries, gen := len(c.local), c.generation
	c.mu.RUnlock()
	local, remote := c.localHits.Load(), c.remoteHits.Load()
	return Stats{
		Hits:         local + remote,
		LocalHits:    local,
		RemoteHits:   remote,
		Misses:       c.misses.Load(),
		Builds:       c.builds.Load(),
		LocalEntries: entries,
		Generation:   gen,
	}
}
