package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/types"
)

// TableSource loads the subscription price table from its system of record.
type TableSource interface {
	LoadSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error)
}

// TableSourceFunc adapts a function to a TableSource.
type TableSourceFunc func(ctx context.Context) (types.SubscriptionPriceTable, error)

func (f TableSourceFunc) LoadSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	return f(ctx)
}

// SubscriptionCache caches the externally-sourced subscription price grid.
// The cache is owned by the composition root and injected into callers; a
// single in-flight load is shared across concurrent lookups.
type SubscriptionCache struct {
	source TableSource

	mu      sync.Mutex
	table   types.SubscriptionPriceTable
	loaded  bool
	loading bool
}

// NewSubscriptionCache returns an empty cache backed by the given source.
func NewSubscriptionCache(source TableSource) *SubscriptionCache {
	return &SubscriptionCache{source: source}
}

// Monthly returns the monthly subscription price for power and duration.
//
// When the table has not been loaded yet it returns 0 (the explicit "not
// ready" signal) and starts one background load; callers that arrive while a
// load is in flight do not trigger another. A failed load leaves the table
// unset and a later lookup re-triggers it.
func (c *SubscriptionCache) Monthly(ctx context.Context, powerKWC float64, durationYears int) float64 {
	c.mu.Lock()
	if c.loaded {
		table := c.table
		c.mu.Unlock()
		return table.Monthly(RoundPower(powerKWC), durationYears)
	}
	start := !c.loading
	c.loading = true
	c.mu.Unlock()

	if start {
		// load outlives the request that triggered it
		go func() {
			if err := c.load(context.WithoutCancel(ctx)); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to load subscription prices", slog.Any("error", err))
			}
		}()
	}
	return 0
}

// Reload synchronously loads the table, replacing any cached copy.
func (c *SubscriptionCache) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.loaded = false
	c.loading = true
	c.mu.Unlock()
	return c.load(ctx)
}

// Loaded reports whether a table is cached. A 0 price with Loaded true means
// the grid genuinely has no entry, not that the cache is still warming up.
func (c *SubscriptionCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Invalidate drops the cached table so the next lookup reloads it.
func (c *SubscriptionCache) Invalidate() {
	c.mu.Lock()
	c.table = types.SubscriptionPriceTable{}
	c.loaded = false
	c.mu.Unlock()
}

func (c *SubscriptionCache) load(ctx context.Context) error {
	table, err := c.source.LoadSubscriptionPrices(ctx)

	c.mu.Lock()
	c.loading = false
	if err == nil {
		c.table = table
		c.loaded = true
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to load subscription prices: %w", err)
	}
	return nil
}
