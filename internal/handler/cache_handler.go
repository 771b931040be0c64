package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/pkg/response"
	"github.com/patchwell/linkstash/internal/service"
)

type CacheHandler struct {
	store *cache.Store
	views *service.ViewService
}

func NewCacheHandler(store *cache.Store, views *service.ViewService) *CacheHandler {
	return &CacheHandler{store: store, views: views}
}

func (h *CacheHandler) Info(c *gin.Context) {
	info, err := h.store.Info(c.Request.Context(), getOwnerID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}

// Clear drops the owner's cached snapshot and in-memory view. Used on
// sign-out and as an escape hatch when the client wants a cold start.
func (h *CacheHandler) Clear(c *gin.Context) {
	ownerID := getOwnerID(c)
	h.views.Evict(c.Request.Context(), ownerID)
	response.Success(c, gin.H{"cleared": true})
}
