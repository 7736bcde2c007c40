// Package cache implements the tiered cache: a fast in-memory tier over a
// durable key-value tier, parametrized by TTL and capacity. Each concrete
// cache (catalog index, pricing snapshots, price list, per-session carts)
// is its own instance over a shared store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/service"
)

// Config holds the construction parameters for one cache instance.
type Config struct {
	Store    service.Store
	Clock    func() time.Time
	Name     string
	TTL      time.Duration
	Capacity int
}

// entry is the persisted wrapper around a cached value.
type entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"ts"`
}

// Cache is a two-level TTL cache. Values must round-trip through JSON.
type Cache[T any] struct {
	store    service.Store
	clock    func() time.Time
	memory   map[string]memEntry[T]
	logger   *slog.Logger
	name     string
	ttl      time.Duration
	capacity int
	mu       sync.Mutex
	// durableMu serializes load-mutate-save cycles on the durable blob so
	// concurrent writers cannot drop each other's entries.
	durableMu sync.Mutex
}

type memEntry[T any] struct {
	value     T
	timestamp time.Time
}

// New creates a cache instance. Capacity 0 leaves the durable tier uncapped.
func New[T any](cfg Config) (*Cache[T], error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: cache store", common.ErrMissingConfig)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: cache name", common.ErrMissingConfig)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: cache TTL must be positive", common.ErrInvalidConfig)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Cache[T]{
		store:    cfg.Store,
		clock:    clock,
		memory:   make(map[string]memEntry[T]),
		logger:   slog.Default().With("component", "cache", "cache", cfg.Name),
		name:     cfg.Name,
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
	}, nil
}

// Read returns the cached value for key. The memory tier is consulted
// first; a fresh durable hit repopulates the memory tier with a read-time
// timestamp, so a resurrected entry's memory age restarts without a
// refetch. A missing, stale, or corrupt entry reports ok=false; corruption
// is additionally reported through the returned error, never a panic.
func (c *Cache[T]) Read(ctx context.Context, key string) (T, bool, error) {
	var zero T
	now := c.clock()

	c.mu.Lock()
	if m, ok := c.memory[key]; ok {
		if c.fresh(now, m.timestamp) {
			c.mu.Unlock()
			return m.value, true, nil
		}
		delete(c.memory, key)
	}
	c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return zero, false, err
	}
	e, ok := entries[key]
	if !ok {
		return zero, false, nil
	}
	if !c.fresh(now, time.UnixMilli(e.Timestamp)) {
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(e.Value, &value); err != nil {
		return zero, false, fmt.Errorf("%w: %s/%s: %v", common.ErrCacheCorruption, c.name, key, err)
	}

	c.mu.Lock()
	c.memory[key] = memEntry[T]{value: value, timestamp: now}
	c.mu.Unlock()

	return value, true, nil
}

// Write stores the value into both tiers with the current timestamp and
// prunes the durable tier down to capacity, keeping the most recently
// written entries.
func (c *Cache[T]) Write(ctx context.Context, key string, value T) error {
	now := c.clock()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %s/%s: %w", c.name, key, err)
	}

	c.mu.Lock()
	c.memory[key] = memEntry[T]{value: value, timestamp: now}
	c.mu.Unlock()

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		// A corrupt durable tier self-heals on the next successful write.
		c.logger.Warn("Discarding unreadable durable tier", "error", err)
		entries = make(map[string]entry)
	}
	entries[key] = entry{Value: raw, Timestamp: now.UnixMilli()}

	if c.capacity > 0 && len(entries) > c.capacity {
		entries = pruneOldest(entries, c.capacity)
	}

	return c.save(ctx, entries)
}

// Invalidate removes key from both tiers.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return c.save(ctx, entries)
}

// Flush drops everything from both tiers.
func (c *Cache[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.memory = make(map[string]memEntry[T])
	c.mu.Unlock()

	c.durableMu.Lock()
	defer c.durableMu.Unlock()

	if err := c.store.Delete(ctx, c.storeKey()); err != nil {
		return fmt.Errorf("failed to flush cache %s: %w", c.name, err)
	}
	return nil
}

// fresh reports whether an entry written at ts is still usable at now.
// An entry exactly TTL old counts as stale.
func (c *Cache[T]) fresh(now, ts time.Time) bool {
	return now.Sub(ts) < c.ttl
}

func (c *Cache[T]) storeKey() string {
	return "cache:" + c.name
}

func (c *Cache[T]) load(ctx context.Context) (map[string]entry, error) {
	raw, err := c.store.Get(ctx, c.storeKey())
	if errors.Is(err, common.ErrNotFound) {
		return make(map[string]entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache %s: %w", c.name, err)
	}
	entries := make(map[string]entry)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrCacheCorruption, c.name, err)
	}
	return entries, nil
}

func (c *Cache[T]) save(ctx context.Context, entries map[string]entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache %s: %w", c.name, err)
	}
	if err := c.store.Set(ctx, c.storeKey(), raw); err != nil {
		return fmt.Errorf("failed to persist cache %s: %w", c.name, err)
	}
	return nil
}

// pruneOldest keeps the capacity most recently written entries. Ties on
// timestamp are broken arbitrarily.
func pruneOldest(entries map[string]entry, capacity int) map[string]entry {
	type stamped struct {
		key string
		ts  int64
	}
	all := make([]stamped, 0, len(entries))
	for k, e := range entries {
		all = append(all, stamped{key: k, ts: e.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts > all[j].ts })

	pruned := make(map[string]entry, capacity)
	for i := 0; i < capacity && i < len(all); i++ {
		pruned[all[i].key] = entries[all[i].key]
	}
	return pruned
}
