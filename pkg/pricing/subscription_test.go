package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunquote/sunquote/pkg/types"
)

type fakeTableSource struct {
	mu    sync.Mutex
	loads int
	table types.SubscriptionPriceTable
	err   error
	// gate, when non-nil, blocks loads until closed
	gate chan struct{}
}

func (f *fakeTableSource) LoadSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.table, f.err
}

func (f *fakeTableSource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func testTable() types.SubscriptionPriceTable {
	return types.SubscriptionPriceTable{Prices: []types.SubscriptionPrice{
		{DurationYears: 25, PowerKWC: 9, MonthlyPrice: 167},
	}}
}

func TestSubscriptionCacheLoadsInBackground(t *testing.T) {
	src := &fakeTableSource{table: testTable()}
	cache := NewSubscriptionCache(src)
	ctx := context.Background()

	// the table is not ready yet so the first lookup signals 0
	assert.Equal(t, 0.0, cache.Monthly(ctx, 9, 25))

	assert.Eventually(t, func() bool {
		return cache.Monthly(ctx, 9, 25) == 167
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.loadCount())
}

func TestSubscriptionCacheCoalescesLoads(t *testing.T) {
	src := &fakeTableSource{table: testTable(), gate: make(chan struct{})}
	cache := NewSubscriptionCache(src)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 0.0, cache.Monthly(ctx, 9, 25))
		}()
	}
	wg.Wait()

	close(src.gate)
	assert.Eventually(t, func() bool {
		return cache.Monthly(ctx, 9, 25) == 167
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.loadCount(), "concurrent lookups must share one load")
}

func TestSubscriptionCacheFailedLoadRetries(t *testing.T) {
	src := &fakeTableSource{err: errors.New("store unavailable")}
	cache := NewSubscriptionCache(src)
	ctx := context.Background()

	assert.Equal(t, 0.0, cache.Monthly(ctx, 9, 25))
	assert.Eventually(t, func() bool {
		return src.loadCount() == 1
	}, time.Second, 5*time.Millisecond)

	// still unset after a failed load
	src.mu.Lock()
	src.err = nil
	src.table = testTable()
	src.mu.Unlock()

	// the next lookup re-triggers a load
	assert.Equal(t, 0.0, cache.Monthly(ctx, 9, 25))
	assert.Eventually(t, func() bool {
		return cache.Monthly(ctx, 9, 25) == 167
	}, time.Second, 5*time.Millisecond)
}

func TestSubscriptionCacheReloadAndInvalidate(t *testing.T) {
	src := &fakeTableSource{table: testTable()}
	cache := NewSubscriptionCache(src)
	ctx := context.Background()

	require.NoError(t, cache.Reload(ctx))
	assert.Equal(t, 167.0, cache.Monthly(ctx, 9, 25))
	assert.Equal(t, 167.0, cache.Monthly(ctx, 9.2, 25), "power is rounded to the half step")

	cache.Invalidate()
	assert.Equal(t, 0.0, cache.Monthly(ctx, 9, 25))
	assert.Eventually(t, func() bool {
		return cache.Monthly(ctx, 9, 25) == 167
	}, time.Second, 5*time.Millisecond)
}
