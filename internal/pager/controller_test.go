package pager_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/pager"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

type fakeBackend struct {
	mu      sync.Mutex
	items   []model.Item
	fetches int
	failAll bool
	delErr  error
	deleted []string

	fetchStarted chan struct{}
	fetchRelease chan struct{}
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{}
	for i := 0; i < n; i++ {
		b.items = append(b.items, model.Item{
			ID:        fmt.Sprintf("item-%03d", i),
			OwnerID:   "owner-1",
			Kind:      model.KindLink,
			Title:     fmt.Sprintf("title %d", i),
			CreatedAt: int64(10000 - i),
		})
	}
	return b
}

func (b *fakeBackend) FetchPage(ctx context.Context, ownerID string, offset, limit uint) ([]model.Item, error) {
	if b.fetchStarted != nil {
		b.fetchStarted <- struct{}{}
		<-b.fetchRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return nil, errors.New("connection refused")
	}
	b.fetches++
	if offset >= uint(len(b.items)) {
		return []model.Item{}, nil
	}
	end := offset + limit
	if end > uint(len(b.items)) {
		end = uint(len(b.items))
	}
	page := make([]model.Item, end-offset)
	copy(page, b.items[offset:end])
	return page, nil
}

func (b *fakeBackend) Delete(ctx context.Context, ownerID, itemID string, mtime int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.delErr != nil {
		return b.delErr
	}
	b.deleted = append(b.deleted, itemID)
	return nil
}

func (b *fakeBackend) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

func openTestCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixedNow() int64 { return 1700000000 }

func TestLoadFetchesFirstPageAndCaches(t *testing.T) {
	backend := newFakeBackend(120)
	store := openTestCache(t)
	ctrl := pager.NewController("owner-1", backend, backend, store, 50, fixedNow)

	require.NoError(t, ctrl.Load(context.Background(), false))
	items := ctrl.Items()
	require.Len(t, items, 50)
	require.Equal(t, "item-000", items[0].ID)
	require.True(t, ctrl.HasMore())

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 50)
}

func TestLoadAdoptsCacheWithoutFetching(t *testing.T) {
	backend := newFakeBackend(120)
	store := openTestCache(t)

	warm := pager.NewController("owner-1", backend, backend, store, 50, fixedNow)
	require.NoError(t, warm.Load(context.Background(), false))
	fetchesBefore := backend.fetchCount()

	cold := pager.NewController("owner-1", backend, backend, store, 50, fixedNow)
	require.NoError(t, cold.Load(context.Background(), false))
	require.Equal(t, fetchesBefore, backend.fetchCount())
	require.Len(t, cold.Items(), 50)
	require.True(t, cold.HasMore())
}

func TestLoadForceBypassesCache(t *testing.T) {
	backend := newFakeBackend(120)
	store := openTestCache(t)
	ctrl := pager.NewController("owner-1", backend, backend, store, 50, fixedNow)

	require.NoError(t, ctrl.Load(context.Background(), false))
	before := backend.fetchCount()
	require.NoError(t, ctrl.Load(context.Background(), true))
	require.Equal(t, before+1, backend.fetchCount())
}

func TestLoadFailureKeepsHeldData(t *testing.T) {
	backend := newFakeBackend(120)
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))

	backend.mu.Lock()
	backend.failAll = true
	backend.mu.Unlock()

	require.NoError(t, ctrl.Load(context.Background(), true))
	require.Len(t, ctrl.Items(), 50)
}

func TestLoadFailureWithNothingHeldSurfaces(t *testing.T) {
	backend := newFakeBackend(0)
	backend.failAll = true
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)

	err := ctrl.Load(context.Background(), false)
	require.ErrorIs(t, err, appErr.ErrStoreUnavailable)
	require.Empty(t, ctrl.Items())
}

func TestLoadMoreAppendsDedupesAndSorts(t *testing.T) {
	backend := newFakeBackend(120)
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))
	require.NoError(t, ctrl.LoadMore(context.Background()))

	items := ctrl.Items()
	require.Len(t, items, 100)
	seen := map[string]struct{}{}
	for i, it := range items {
		_, dup := seen[it.ID]
		require.False(t, dup, "duplicate id %s", it.ID)
		seen[it.ID] = struct{}{}
		if i > 0 {
			require.GreaterOrEqual(t, items[i-1].CreatedAt, it.CreatedAt)
		}
	}
	require.True(t, ctrl.HasMore())
}

func TestLoadMoreStopsAtExhaustion(t *testing.T) {
	backend := newFakeBackend(70)
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))
	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.False(t, ctrl.HasMore())

	before := backend.fetchCount()
	require.NoError(t, ctrl.LoadMore(context.Background()))
	require.Equal(t, before, backend.fetchCount())
	require.Len(t, ctrl.Items(), 70)
}

func TestLoadMoreWhileInFlightIsDropped(t *testing.T) {
	backend := newFakeBackend(120)
	backend.fetchStarted = make(chan struct{})
	backend.fetchRelease = make(chan struct{})
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)

	go func() {
		<-backend.fetchStarted
		backend.fetchRelease <- struct{}{}
	}()
	require.NoError(t, ctrl.Load(context.Background(), false))

	done := make(chan error, 1)
	go func() {
		done <- ctrl.LoadMore(context.Background())
	}()
	<-backend.fetchStarted

	// second call while the first is blocked mid-fetch
	require.NoError(t, ctrl.LoadMore(context.Background()))

	backend.fetchRelease <- struct{}{}
	require.NoError(t, <-done)
	require.Len(t, ctrl.Items(), 100)
}

func TestSetSortOrderReordersInPlace(t *testing.T) {
	backend := newFakeBackend(60)
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))
	before := backend.fetchCount()

	ctrl.SetSortOrder(context.Background(), model.SortOldestFirst)
	require.Equal(t, before, backend.fetchCount())
	items := ctrl.Items()
	for i := 1; i < len(items); i++ {
		require.LessOrEqual(t, items[i-1].CreatedAt, items[i].CreatedAt)
	}
	require.Equal(t, model.SortOldestFirst, ctrl.SortOrder())
}

func TestDeleteOptimisticallyRemoves(t *testing.T) {
	backend := newFakeBackend(10)
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))

	require.NoError(t, ctrl.Delete(context.Background(), "item-003"))
	for _, it := range ctrl.Items() {
		require.NotEqual(t, "item-003", it.ID)
	}
	require.Equal(t, []string{"item-003"}, backend.deleted)
}

func TestDeleteFailureReinsertsAtSortPosition(t *testing.T) {
	backend := newFakeBackend(10)
	backend.delErr = errors.New("backend rejected")
	ctrl := pager.NewController("owner-1", backend, backend, nil, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))

	err := ctrl.Delete(context.Background(), "item-003")
	require.Error(t, err)

	items := ctrl.Items()
	require.Len(t, items, 10)
	require.Equal(t, "item-003", items[3].ID)
}

func TestResetDropsCollectionAndCache(t *testing.T) {
	backend := newFakeBackend(20)
	store := openTestCache(t)
	ctrl := pager.NewController("owner-1", backend, backend, store, 50, fixedNow)
	require.NoError(t, ctrl.Load(context.Background(), false))

	ctrl.Reset(context.Background())
	require.Empty(t, ctrl.Items())
	require.False(t, ctrl.HasMore())

	_, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, ok)
}
