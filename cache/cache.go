// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/xmidt-org/vitrine/model"
	"github.com/xmidt-org/vitrine/store"
	"go.uber.org/zap"
)

// Cache is a best-effort, time-limited store of item display data kept
// in a single blob. Failures are logged and never returned.
type Cache struct {
	store    store.S
	config   Config
	logger   *zap.Logger
	measures Measures
	now      func() time.Time
	lock     sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMeasures sets the metrics the cache reports to.
func WithMeasures(m Measures) Option {
	return func(c *Cache) {
		c.measures = m
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns a cache backed by s.
func New(s store.S, config Config, opts ...Option) *Cache {
	c := &Cache{
		store:  s,
		config: config.withDefaults(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type entries map[string]model.CacheEntry

// Get returns the entry for id when present and fresh.
func (c *Cache) Get(ctx context.Context, id int) (model.CacheEntry, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	all := c.load(ctx)
	e, ok := all[strconv.Itoa(id)]
	switch {
	case !ok:
		c.measures.lookup(MissResult)
		return model.CacheEntry{}, false
	case c.expired(e):
		c.measures.lookup(StaleResult)
		return model.CacheEntry{}, false
	}
	c.measures.lookup(HitResult)
	return e, true
}

// Put stamps e with the current time and stores it under id.
func (c *Cache) Put(ctx context.Context, id int, e model.CacheEntry) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e.Timestamp = c.now().UnixMilli()
	all := c.load(ctx)
	if len(all) > c.config.MaxEntries {
		c.measures.evicted(c.evict(all))
	}
	key := strconv.Itoa(id)
	all[key] = e

	err := c.save(ctx, all)
	if err == nil {
		return
	}
	if !errors.Is(err, store.ErrQuotaExceeded) {
		c.logger.Warn("failed to write item cache", zap.Int("id", id), zap.Error(err))
		return
	}

	c.logger.Info("item cache store is full, clearing", zap.Int("entries", len(all)))
	c.measures.reset()
	if err := c.store.Clear(ctx, c.config.Namespace); err != nil {
		c.logger.Warn("failed to clear item cache", zap.Error(err))
	}
	if err := c.save(ctx, entries{key: e}); err != nil {
		c.logger.Warn("dropping item cache write", zap.Int("id", id), zap.Error(err))
	}
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len(ctx context.Context) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.load(ctx))
}

func (c *Cache) expired(e model.CacheEntry) bool {
	return c.now().Sub(e.WrittenAt()) > c.config.TTL
}

// load returns the decoded blob with expired entries dropped. Any failure
// reads as an empty cache.
func (c *Cache) load(ctx context.Context) entries {
	data, err := c.store.Load(ctx, c.config.Namespace)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("failed to read item cache", zap.Error(err))
		}
		return entries{}
	}
	var all entries
	if err := json.Unmarshal(data, &all); err != nil {
		c.logger.Warn("discarding undecodable item cache", zap.Error(err))
		return entries{}
	}
	if all == nil {
		all = entries{}
	}
	for k, e := range all {
		if c.expired(e) {
			delete(all, k)
		}
	}
	return all
}

func (c *Cache) save(ctx context.Context, all entries) error {
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, c.config.Namespace, data)
}

// evict removes the oldest entries until EvictTo remain and returns how
// many were removed.
func (c *Cache) evict(all entries) int {
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return all[keys[i]].Timestamp < all[keys[j]].Timestamp
	})
	n := len(all) - c.config.EvictTo
	for _, k := range keys[:n] {
		delete(all, k)
	}
	return n
}
