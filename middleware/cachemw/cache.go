// Package cachemw implements the cache reference middleware (spec.md
// §4.9): key = (method, canonical payload); on hit, short-circuit with
// the cached items; on miss, collect next's items, store them iff they
// all pass ShouldCache, then yield them.
//
// Backed by hashicorp/golang-lru/v2's expirable LRU — the bounded,
// TTL'd collection the pack's "collections layer" dependency provides,
// rather than a hand-rolled map+timer.
package cachemw

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// Stats is a point-in-time snapshot of cache activity, for a periodic
// stats emitter.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Config tunes the cache middleware.
type Config struct {
	Size        int
	TTL         time.Duration
	ShouldCache func(items []*fabric.ResponseItem) bool // default: all items successful
}

// Cache wraps an expirable LRU keyed by method+canonicalized payload.
type Cache struct {
	cache       *lru.LRU[string, []*fabric.ResponseItem]
	shouldCache func(items []*fabric.ResponseItem) bool
	hits        atomic.Int64
	misses      atomic.Int64
}

// New builds a Cache middleware factory; call Middleware() to get the
// composable unit, and Stats() periodically to observe hit/miss counts.
func New(cfg Config) *Cache {
	shouldCache := cfg.ShouldCache
	if shouldCache == nil {
		shouldCache = defaultShouldCache
	}
	return &Cache{
		cache:       lru.NewLRU[string, []*fabric.ResponseItem](cfg.Size, nil, cfg.TTL),
		shouldCache: shouldCache,
	}
}

func defaultShouldCache(items []*fabric.ResponseItem) bool {
	for _, item := range items {
		if item == nil || !item.Status.Success {
			return false
		}
	}
	return true
}

// Middleware returns the composable Middleware backed by this Cache.
func (c *Cache) Middleware() middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			key := cacheKey(env)

			if cached, ok := c.cache.Get(key); ok {
				c.hits.Add(1)
				return replay(cached), nil
			}
			c.misses.Add(1)

			ch, err := next(ctx, env)
			if err != nil {
				return ch, err
			}

			items := drain(ch)
			if c.shouldCache(items) {
				c.cache.Add(key, items)
			}
			return replay(items), nil
		}
	}
}

// Stats returns a snapshot of hit/miss counters and current size.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.cache.Len()}
}

func cacheKey(env *fabric.Envelope) string {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		payload = []byte("<unmarshalable>")
	}
	return env.Method.Key() + "|" + string(payload)
}

func drain(ch <-chan *fabric.ResponseItem) []*fabric.ResponseItem {
	items := make([]*fabric.ResponseItem, 0, 1)
	for item := range ch {
		items = append(items, item)
	}
	return items
}

func replay(items []*fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return ch
}
