package pager

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

// Fetcher is the authoritative paged read interface, insertion time
// descending.
type Fetcher interface {
	FetchPage(ctx context.Context, ownerID string, offset, limit uint) ([]model.Item, error)
}

// Deleter removes an item from the authoritative store.
type Deleter interface {
	Delete(ctx context.Context, ownerID, itemID string, mtime int64) error
}

type nowFunc func() int64

// Controller owns one owner's in-memory item collection: it merges paged
// fetches with the local cache, keeps the collection sorted by the active
// order after every mutation, and tracks exhaustion. All mutations go
// through its mutex; readers get copies.
type Controller struct {
	mu         sync.Mutex
	items      []model.Item
	order      model.SortOrder
	nextOffset uint
	hasMore    bool
	loading    bool

	ownerID  string
	pageSize uint
	fetcher  Fetcher
	deleter  Deleter
	cache    *cache.Store
	now      nowFunc
}

func NewController(ownerID string, fetcher Fetcher, deleter Deleter, store *cache.Store, pageSize uint, now nowFunc) *Controller {
	if pageSize == 0 {
		pageSize = 50
	}
	return &Controller{
		ownerID:  ownerID,
		fetcher:  fetcher,
		deleter:  deleter,
		cache:    store,
		pageSize: pageSize,
		order:    model.SortNewestFirst,
		now:      now,
	}
}

// Load populates the collection. Without force a fresh cache entry is
// adopted as-is and no network call happens. Otherwise page zero replaces
// the collection and is written back to the cache. A fetch failure keeps
// whatever data is already held; it only surfaces when there is nothing to
// show at all.
func (c *Controller) Load(ctx context.Context, force bool) error {
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", c.ownerID))

	if !force && c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, c.ownerID)
		if err != nil {
			logger.Warn("cache read failed, falling through to fetch", zap.Error(err))
		} else if ok {
			items := make([]model.Item, 0, len(cached))
			for _, p := range cached {
				items = append(items, p.Restore(c.ownerID))
			}
			c.mu.Lock()
			c.items = items
			model.SortItems(c.items, c.order)
			c.nextOffset = uint(len(items))
			c.hasMore = uint(len(items)) >= c.pageSize
			c.mu.Unlock()
			logger.Debug("adopted cached collection", zap.Int("items", len(items)))
			return nil
		}
	}

	page, err := c.fetcher.FetchPage(ctx, c.ownerID, 0, c.pageSize)
	if err != nil {
		c.mu.Lock()
		held := len(c.items)
		c.mu.Unlock()
		if held > 0 {
			logger.Warn("refresh failed, keeping current collection", zap.Error(err))
			return nil
		}
		return fmt.Errorf("%w: %v", appErr.ErrStoreUnavailable, err)
	}

	c.mu.Lock()
	c.items = page
	model.SortItems(c.items, c.order)
	c.nextOffset = uint(len(page))
	c.hasMore = uint(len(page)) == c.pageSize
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snapshot)
	return nil
}

// LoadMore fetches the next page and merges it in. A call while another is
// in flight, or after exhaustion, is dropped rather than queued.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	offset := c.nextOffset
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, c.ownerID, offset, c.pageSize)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		logutil.GetLogger(ctx).Warn("load more failed", zap.String("owner_id", c.ownerID), zap.Error(err))
		return fmt.Errorf("%w: %v", appErr.ErrStoreUnavailable, err)
	}
	seen := make(map[string]struct{}, len(c.items))
	for _, it := range c.items {
		seen[it.ID] = struct{}{}
	}
	for _, it := range page {
		if _, dup := seen[it.ID]; !dup {
			c.items = append(c.items, it)
		}
	}
	model.SortItems(c.items, c.order)
	c.nextOffset = offset + uint(len(page))
	c.hasMore = uint(len(page)) == c.pageSize
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snapshot)
	return nil
}

// SetSortOrder re-sorts the held collection in place; no refetch.
func (c *Controller) SetSortOrder(ctx context.Context, order model.SortOrder) {
	c.mu.Lock()
	c.order = order
	model.SortItems(c.items, c.order)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.writeCache(ctx, snapshot)
}

// Delete removes the item optimistically. When the backend rejects the
// delete the item is re-inserted at its sort position so the view never
// stays silently inconsistent.
func (c *Controller) Delete(ctx context.Context, itemID string) error {
	c.mu.Lock()
	var removed *model.Item
	for i := range c.items {
		if c.items[i].ID == itemID {
			it := c.items[i]
			removed = &it
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if err := c.deleter.Delete(ctx, c.ownerID, itemID, c.now()); err != nil {
		if removed != nil {
			c.mu.Lock()
			c.items = append(c.items, *removed)
			model.SortItems(c.items, c.order)
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.writeCache(ctx, snapshot)
	return nil
}

// Items returns a copy of the collection in the active sort order.
func (c *Controller) Items() []model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *Controller) SortOrder() model.SortOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// OnChange is the change-notification hook: any external insert, update or
// delete just forces a full reload.
func (c *Controller) OnChange(ctx context.Context) {
	if err := c.Load(ctx, true); err != nil {
		logutil.GetLogger(ctx).Warn("change-triggered reload failed", zap.String("owner_id", c.ownerID), zap.Error(err))
	}
}

// Reset drops the in-memory collection and the persisted cache. Owner
// switches must call this; stale cross-owner data is a correctness bug.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.items = nil
	c.nextOffset = 0
	c.hasMore = false
	c.mu.Unlock()
	if c.cache != nil {
		if err := c.cache.Clear(ctx, c.ownerID); err != nil {
			logutil.GetLogger(ctx).Warn("cache clear failed", zap.String("owner_id", c.ownerID), zap.Error(err))
		}
	}
}

func (c *Controller) snapshotLocked() []model.Item {
	out := make([]model.Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller) writeCache(ctx context.Context, items []model.Item) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, c.ownerID, items); err != nil {
		logutil.GetLogger(ctx).Warn("cache write failed", zap.String("owner_id", c.ownerID), zap.Error(err))
	}
}
