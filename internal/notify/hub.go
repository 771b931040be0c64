package notify

import (
	"context"
	"sync"
)

// Subscriber reacts to a change in one owner's items. The hub delivers no
// diff; reloading is the whole contract.
type Subscriber func(ctx context.Context, ownerID string)

// Hub is an in-process change-notification feed: the item write path
// publishes after every insert, update or delete and interested components
// (the pagination controller) refresh in response.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string][]Subscriber)}
}

func (h *Hub) Subscribe(ownerID string, sub Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	h.subs[ownerID] = append(h.subs[ownerID], sub)
	h.mu.Unlock()
}

func (h *Hub) Unsubscribe(ownerID string) {
	h.mu.Lock()
	delete(h.subs, ownerID)
	h.mu.Unlock()
}

// Publish fans the change out to the owner's subscribers. Delivery outlives
// the caller: the publishing request returns before subscribers finish their
// reload, so the context is detached from the caller's cancellation while
// keeping its values (logger, request id).
func (h *Hub) Publish(ctx context.Context, ownerID string) {
	h.mu.RLock()
	subs := make([]Subscriber, len(h.subs[ownerID]))
	copy(subs, h.subs[ownerID])
	h.mu.RUnlock()
	deliverCtx := context.WithoutCancel(ctx)
	for _, sub := range subs {
		go sub(deliverCtx, ownerID)
	}
}
