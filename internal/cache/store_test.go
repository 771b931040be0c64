package cache_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/model"
)

func openTestStore(t *testing.T, opts cache.Options) *cache.Store {
	t.Helper()
	opts.InMemory = true
	store, err := cache.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeItems(n int) []model.Item {
	items := make([]model.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.Item{
			ID:        fmt.Sprintf("item-%03d", i),
			OwnerID:   "owner-1",
			Kind:      model.KindLink,
			Title:     fmt.Sprintf("title %d", i),
			UserNotes: "some notes",
			Tags:      []string{"tag"},
			CreatedAt: int64(1000 - i),
		})
	}
	return items
}

func TestSetGetRoundTripPreservesOrder(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	items := makeItems(5)
	require.NoError(t, store.Set(context.Background(), "owner-1", items))

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 5)
	for i, p := range cached {
		require.Equal(t, items[i].ID, p.ID)
		require.Equal(t, items[i].Title, p.Title)
	}
}

func TestSweepRemovesExpiredGenerationsOnly(t *testing.T) {
	store := openTestStore(t, cache.Options{TTL: 2 * time.Second})
	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(3)))
	require.NoError(t, store.Set(context.Background(), "owner-2", makeItems(3)))

	// CachedAt has second granularity, so a fresh write can look up to a
	// second old; the 2s TTL keeps owner-3 clear of that while the sleep
	// pushes the first two generations past it.
	time.Sleep(2200 * time.Millisecond)
	require.NoError(t, store.Set(context.Background(), "owner-3", makeItems(3)))

	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, ok, err := store.Get(context.Background(), "owner-3")
	require.NoError(t, err)
	require.True(t, ok)

	removed, err = store.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestProjectionDropsEmbeddings(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	items := makeItems(1)
	items[0].TitleEmb = []float32{1, 2, 3}
	items[0].ContentEmb = []float32{4, 5, 6}
	require.NoError(t, store.Set(context.Background(), "owner-1", items))

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	restored := cached[0].Restore("owner-1")
	require.Nil(t, restored.TitleEmb)
	require.Nil(t, restored.ContentEmb)
}

func TestSetCapsAtMaxItems(t *testing.T) {
	store := openTestStore(t, cache.Options{MaxItems: 10})
	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(25)))

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 10)
	require.Equal(t, "item-000", cached[0].ID)
}

func TestSetDegradesToReducedTierOnByteBudget(t *testing.T) {
	store := openTestStore(t, cache.Options{MaxItems: 100, ByteBudget: 4096})
	items := makeItems(60)
	for i := range items {
		items[i].UserNotes = strings.Repeat("n", 100)
	}
	require.NoError(t, store.Set(context.Background(), "owner-1", items))

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 20)
	require.Equal(t, "item-000", cached[0].ID)
	// the reduced tier keeps full projections
	require.NotEmpty(t, cached[0].UserNotes)
}

func TestSetDegradesToMinimalTier(t *testing.T) {
	store := openTestStore(t, cache.Options{MaxItems: 100, ByteBudget: 1200})
	items := makeItems(60)
	for i := range items {
		items[i].UserNotes = strings.Repeat("n", 200)
		items[i].ThumbnailURL = "https://example.com/thumb.png"
	}
	require.NoError(t, store.Set(context.Background(), "owner-1", items))

	cached, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 10)
	require.Equal(t, "item-000", cached[0].ID)
	require.Equal(t, "title 0", cached[0].Title)
	require.Equal(t, "https://example.com/thumb.png", cached[0].ThumbnailURL)
	// everything else is stripped at this tier
	require.Empty(t, cached[0].UserNotes)
	require.Empty(t, cached[0].Kind)
}

func TestGetMissingOwnerIsAbsentNotError(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	cached, ok, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, cached)
}

func TestGetExpiredEntryIsAbsentAndCleared(t *testing.T) {
	store := openTestStore(t, cache.Options{TTL: time.Millisecond})
	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(3)))
	time.Sleep(1100 * time.Millisecond)

	_, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, ok)

	info, err := store.Info(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, info.Exists)
}

func TestClearRemovesEntry(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(3)))
	require.NoError(t, store.Clear(context.Background(), "owner-1"))

	_, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, ok)

	// clearing an absent key is fine
	require.NoError(t, store.Clear(context.Background(), "owner-1"))
}

func TestOwnersAreIsolated(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(2)))
	require.NoError(t, store.Set(context.Background(), "owner-2", makeItems(4)))

	a, ok, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, a, 2)

	require.NoError(t, store.Clear(context.Background(), "owner-1"))
	b, ok, err := store.Get(context.Background(), "owner-2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, b, 4)
}

func TestInfoReportsEntry(t *testing.T) {
	store := openTestStore(t, cache.Options{})
	info, err := store.Info(context.Background(), "owner-1")
	require.NoError(t, err)
	require.False(t, info.Exists)

	require.NoError(t, store.Set(context.Background(), "owner-1", makeItems(7)))
	info, err = store.Info(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, 7, info.ItemCount)
	require.Greater(t, info.SizeBytes, 0)
	require.NotZero(t, info.CachedAt)
}
