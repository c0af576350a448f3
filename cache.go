package spacetraveling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/spacetraveling/views"
)

// refreshTimeout bounds a background revalidation, which outlives the request
// that triggered it.
const refreshTimeout = 30 * time.Second

// FetchFunc loads a fresh payload for a cache key.
type FetchFunc func(ctx context.Context) ([]byte, error)

type cacheEntry struct {
	payload []byte
	fetched time.Time
}

// PageCache keeps page data in memory, backed by snapshots in the Store.
// Entries older than the TTL are still served while a single background
// refresh replaces them; a failed refresh keeps the old entry.
//
// Invalidation bumps a generation counter. A fetch started under an older
// generation is returned to its callers but never stored.
type PageCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64
	ttl     time.Duration
	store   *Store
	logger  echo.Logger
	group   singleflight.Group
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewPageCache creates a PageCache backed by the given Store.
func NewPageCache(s *Store, ttl time.Duration, logger echo.Logger) *PageCache {
	return &PageCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		store:   s,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *PageCache) stale(e cacheEntry) bool {
	return c.now().Sub(e.fetched) >= c.ttl
}

func (c *PageCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *PageCache) lookup(key string) (cacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return e, true
	}
	snap, err := c.store.GetSnapshot(key)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			c.logger.Warnf("cache: read snapshot %s: %v", key, err)
		}
		return cacheEntry{}, false
	}
	e = cacheEntry{payload: snap.Payload, fetched: snap.FetchedAt}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Invalidated while the snapshot was being read.
		return cacheEntry{}, false
	}
	if cur, ok := c.entries[key]; !ok || cur.fetched.Before(e.fetched) {
		c.entries[key] = e
	}
	return e, true
}

// Get returns the payload for key. A miss is fetched synchronously, with
// concurrent misses for the same key sharing one fetch. Fetch errors are
// returned and nothing is cached, so a not-found page is retried next time.
func (c *PageCache) Get(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if e, ok := c.lookup(key); ok {
		if c.stale(e) {
			c.refresh(ctx, key, fetch)
		}
		return e.payload, nil
	}
	gen := c.generation()
	v, err, _ := c.group.Do(flightKey(key, gen), func() (interface{}, error) {
		return c.fill(ctx, key, gen, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// flightKey scopes singleflight calls to a generation, so a read after an
// invalidation never joins a fetch that started before it.
func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

func (c *PageCache) fill(ctx context.Context, key string, gen uint64, fetch FetchFunc) ([]byte, error) {
	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	e := cacheEntry{payload: payload, fetched: c.now()}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return payload, nil
	}
	c.entries[key] = e
	if err := c.store.SaveSnapshot(Snapshot{Key: key, Payload: payload, FetchedAt: e.fetched}); err != nil {
		c.logger.Warnf("cache: save snapshot %s: %v", key, err)
	}
	return payload, nil
}

// refresh revalidates key in the background. Only one refresh per key runs
// at a time.
func (c *PageCache) refresh(ctx context.Context, key string, fetch FetchFunc) {
	gen := c.generation()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		_, err, _ := c.group.Do(flightKey(key, gen), func() (interface{}, error) {
			return c.fill(ctx, key, gen, fetch)
		})
		if err != nil {
			c.logger.Warnf("cache: revalidate %s: %v", key, err)
		}
	}()
}

// Wait blocks until in-flight background refreshes finish.
func (c *PageCache) Wait() {
	c.wg.Wait()
}

// Invalidate drops key so the next read fetches it again.
func (c *PageCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.entries, key)
	return c.store.DeleteSnapshot(key)
}

// InvalidateAll drops every entry.
func (c *PageCache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]cacheEntry)
	return c.store.DeleteAllSnapshots()
}

// Entries lists what is cached, for the admin dashboard.
func (c *PageCache) Entries() ([]views.CacheEntry, error) {
	snaps, err := c.store.ListSnapshots()
	if err != nil {
		return nil, err
	}
	out := make([]views.CacheEntry, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, views.CacheEntry{
			Key:       s.Key,
			FetchedAt: s.FetchedAt,
			Stale:     c.stale(cacheEntry{fetched: s.FetchedAt}),
		})
	}
	return out, nil
}

// cached is the typed front of PageCache.Get: values are stored as JSON.
func cached[T any](ctx context.Context, c *PageCache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var v T
	payload, err := c.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		fresh, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fresh)
	})
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return v, nil
}
