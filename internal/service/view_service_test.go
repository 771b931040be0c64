package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/notify"
	"github.com/patchwell/linkstash/internal/service"
)

type memoryBackend struct {
	mu    sync.Mutex
	byOwn map[string][]model.Item
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{byOwn: make(map[string][]model.Item)}
}

func (b *memoryBackend) seed(ownerID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := len(b.byOwn[ownerID])
	for i := base; i < base+n; i++ {
		b.byOwn[ownerID] = append(b.byOwn[ownerID], model.Item{
			ID:        fmt.Sprintf("%s-item-%03d", ownerID, i),
			OwnerID:   ownerID,
			Kind:      model.KindLink,
			Title:     fmt.Sprintf("title %d", i),
			CreatedAt: int64(10000 - i),
		})
	}
}

func (b *memoryBackend) FetchPage(ctx context.Context, ownerID string, offset, limit uint) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.byOwn[ownerID]
	if offset >= uint(len(items)) {
		return []model.Item{}, nil
	}
	end := offset + limit
	if end > uint(len(items)) {
		end = uint(len(items))
	}
	page := make([]model.Item, end-offset)
	copy(page, items[offset:end])
	return page, nil
}

func (b *memoryBackend) Delete(ctx context.Context, ownerID, itemID string, mtime int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.byOwn[ownerID]
	for i := range items {
		if items[i].ID == itemID {
			b.byOwn[ownerID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return errors.New("no such item")
}

func openViewCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestViewServiceListPagesThrough(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 25)
	views := service.NewViewService(backend, backend, openViewCache(t), notify.NewHub(), 10)

	res, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, res.Items, 10)
	require.True(t, res.HasMore)

	res, err = views.List(context.Background(), "owner-1", model.SortNewestFirst, false, true)
	require.NoError(t, err)
	require.Len(t, res.Items, 20)

	res, err = views.List(context.Background(), "owner-1", model.SortNewestFirst, false, true)
	require.NoError(t, err)
	require.Len(t, res.Items, 25)
	require.False(t, res.HasMore)
}

func TestViewServiceOwnersAreIsolated(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 5)
	backend.seed("owner-2", 3)
	views := service.NewViewService(backend, backend, openViewCache(t), notify.NewHub(), 10)

	a, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, a.Items, 5)

	b, err := views.List(context.Background(), "owner-2", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, b.Items, 3)
	for _, it := range b.Items {
		require.Equal(t, "owner-2", it.OwnerID)
	}
}

func TestViewServiceDeleteRemovesFromView(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 5)
	views := service.NewViewService(backend, backend, openViewCache(t), notify.NewHub(), 10)

	res, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	victim := res.Items[2].ID

	require.NoError(t, views.Delete(context.Background(), "owner-1", victim))
	res, err = views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, res.Items, 4)
	for _, it := range res.Items {
		require.NotEqual(t, victim, it.ID)
	}
}

func TestViewServiceReloadsOnChangeNotification(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 3)
	hub := notify.NewHub()
	views := service.NewViewService(backend, backend, nil, hub, 10)

	res, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	backend.seed("owner-1", 2)
	hub.Publish(context.Background(), "owner-1")

	require.Eventually(t, func() bool {
		return len(views.Controller("owner-1").Items()) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestViewServiceReloadSurvivesPublisherCancellation(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 3)
	hub := notify.NewHub()
	views := service.NewViewService(backend, backend, nil, hub, 10)

	res, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	// The write path publishes on the request context and gin cancels it as
	// soon as the handler returns; the reload must not die with it.
	backend.seed("owner-1", 2)
	ctx, cancel := context.WithCancel(context.Background())
	hub.Publish(ctx, "owner-1")
	cancel()

	require.Eventually(t, func() bool {
		return len(views.Controller("owner-1").Items()) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestViewServiceEvictDropsState(t *testing.T) {
	backend := newMemoryBackend()
	backend.seed("owner-1", 5)
	store := openViewCache(t)
	views := service.NewViewService(backend, backend, store, notify.NewHub(), 10)

	_, err := views.List(context.Background(), "owner-1", model.SortNewestFirst, false, false)
	require.NoError(t, err)

	views.Evict(context.Background(), "owner-1")

	_, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, ok)
}
