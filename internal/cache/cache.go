// Package cache implements the Cache (C12): a fingerprint-keyed LRU with
// per-entry-type TTL, at-most-one-compute-in-flight semantics via
// singleflight, and OpenTelemetry-backed hit/miss/eviction statistics.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// EntryType distinguishes the per-type TTLs spec §4.12 calls for
// ("TTL per entry type").
type EntryType string

const (
	EntryRetrieval EntryType = "retrieval"
	EntryGeneration EntryType = "generation"
	EntryContext    EntryType = "context"
)

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
	key       string
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache is the Orchestrator-owned fingerprint memo described in spec
// §4.12. The zero value is not usable; construct with New.
type Cache struct {
	mu        sync.Mutex
	maxEntries int
	ttls      map[EntryType]time.Duration
	items     map[string]*list.Element
	order     *list.List // front = most recently used
	group     singleflight.Group

	meter      metric.Meter
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	evictions  metric.Int64Counter
}

// New builds a Cache with the configured max size and per-entry-type TTLs.
func New(maxEntries int, ttls map[EntryType]time.Duration) *Cache {
	meter := otel.Meter("broadcastengine/cache")
	hits, _ := meter.Int64Counter("cache_hits_total")
	misses, _ := meter.Int64Counter("cache_misses_total")
	evictions, _ := meter.Int64Counter("cache_evictions_total")
	return &Cache{
		maxEntries: maxEntries,
		ttls:       ttls,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		meter:      meter,
		hits:       hits,
		misses:     misses,
		evictions:  evictions,
	}
}

// GetOrCompute returns the cached value for (entryType, key) if present
// and unexpired; otherwise it computes it via compute, with at-most-one
// compute in flight per key guaranteed by singleflight even if the
// engine is driven concurrently (spec §4.12 guarantee 1).
func (c *Cache) GetOrCompute(ctx context.Context, entryType EntryType, key string, compute func(context.Context) (any, error)) (any, error) {
	fullKey := string(entryType) + ":" + key
	attrs := metric.WithAttributes(attribute.String("entry_type", string(entryType)))

	c.mu.Lock()
	if el, ok := c.items[fullKey]; ok {
		e := el.Value.(*entry)
		if !e.expired(time.Now()) {
			c.order.MoveToFront(el)
			c.mu.Unlock()
			c.hits.Add(ctx, 1, attrs)
			return e.value, nil
		}
		c.removeElement(el)
	}
	c.mu.Unlock()
	c.misses.Add(ctx, 1, attrs)

	v, err, _ := c.group.Do(fullKey, func() (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.put(fullKey, entryType, v)
	c.mu.Unlock()
	return v, nil
}

// put assumes the caller holds c.mu.
func (c *Cache) put(fullKey string, entryType EntryType, value any) {
	if el, ok := c.items[fullKey]; ok {
		c.removeElement(el)
	}
	e := &entry{value: value, createdAt: time.Now(), ttl: c.ttls[entryType], key: fullKey}
	el := c.order.PushFront(e)
	c.items[fullKey] = el

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
		c.evictions.Add(context.Background(), 1)
	}
}

// removeElement assumes the caller holds c.mu.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Stats is a point-in-time snapshot of the cache's entry count. Hits,
// misses and evictions are not part of it; they go to the OpenTelemetry
// counters registered in New.
type Stats struct {
	Entries int
}

// Snapshot reports the current entry count.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: c.order.Len()}
}
