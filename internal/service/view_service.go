package service

import (
	"context"
	"sync"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/notify"
	"github.com/patchwell/linkstash/internal/pager"
	"github.com/patchwell/linkstash/internal/pkg/timeutil"
)

// ViewService hands out one pagination controller per signed-in owner and
// keeps it subscribed to the change feed. Evict must run on sign-out so no
// cross-owner state survives.
type ViewService struct {
	mu          sync.Mutex
	controllers map[string]*pager.Controller

	fetcher  pager.Fetcher
	deleter  pager.Deleter
	cache    *cache.Store
	hub      *notify.Hub
	pageSize uint
}

func NewViewService(fetcher pager.Fetcher, deleter pager.Deleter, store *cache.Store, hub *notify.Hub, pageSize uint) *ViewService {
	return &ViewService{
		controllers: make(map[string]*pager.Controller),
		fetcher:     fetcher,
		deleter:     deleter,
		cache:       store,
		hub:         hub,
		pageSize:    pageSize,
	}
}

func (s *ViewService) Controller(ownerID string) *pager.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.controllers[ownerID]; ok {
		return ctrl
	}
	ctrl := pager.NewController(ownerID, s.fetcher, s.deleter, s.cache, s.pageSize, timeutil.NowUnix)
	s.controllers[ownerID] = ctrl
	if s.hub != nil {
		s.hub.Subscribe(ownerID, func(ctx context.Context, _ string) {
			ctrl.OnChange(ctx)
		})
	}
	return ctrl
}

type ListResult struct {
	Items   []model.Item    `json:"items"`
	HasMore bool            `json:"has_more"`
	Sort    model.SortOrder `json:"sort"`
}

// List serves the browse view: first page (optionally bypassing the cache),
// or the next page when more is requested.
func (s *ViewService) List(ctx context.Context, ownerID string, order model.SortOrder, refresh, more bool) (*ListResult, error) {
	ctrl := s.Controller(ownerID)
	if order != ctrl.SortOrder() {
		ctrl.SetSortOrder(ctx, order)
	}
	var err error
	if more {
		err = ctrl.LoadMore(ctx)
	} else {
		err = ctrl.Load(ctx, refresh)
	}
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: ctrl.Items(), HasMore: ctrl.HasMore(), Sort: ctrl.SortOrder()}, nil
}

func (s *ViewService) Delete(ctx context.Context, ownerID, itemID string) error {
	return s.Controller(ownerID).Delete(ctx, itemID)
}

// Evict tears down an owner's runtime state: in-memory collection, cache
// entry and change subscription.
func (s *ViewService) Evict(ctx context.Context, ownerID string) {
	s.mu.Lock()
	ctrl, ok := s.controllers[ownerID]
	delete(s.controllers, ownerID)
	s.mu.Unlock()
	if s.hub != nil {
		s.hub.Unsubscribe(ownerID)
	}
	if ok {
		ctrl.Reset(ctx)
	}
}
