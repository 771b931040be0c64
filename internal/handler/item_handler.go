package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/pkg/errcode"
	"github.com/patchwell/linkstash/internal/pkg/response"
	"github.com/patchwell/linkstash/internal/service"
)

type ItemHandler struct {
	items *service.ItemService
	views *service.ViewService
}

func NewItemHandler(items *service.ItemService, views *service.ViewService) *ItemHandler {
	return &ItemHandler{items: items, views: views}
}

type captureRequest struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	OriginalURL string   `json:"original_url"`
	UserNotes   string   `json:"user_notes"`
	Tags        []string `json:"tags"`
	SourceName  string   `json:"source_name"`
}

func (h *ItemHandler) Capture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	item, err := h.items.Capture(c.Request.Context(), getOwnerID(c), service.CaptureInput{
		Kind:        req.Kind,
		Title:       req.Title,
		OriginalURL: req.OriginalURL,
		UserNotes:   req.UserNotes,
		Tags:        req.Tags,
		SourceName:  req.SourceName,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *ItemHandler) List(c *gin.Context) {
	order, ok := model.ParseSortOrder(c.DefaultQuery("sort", string(model.SortNewestFirst)))
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown sort order")
		return
	}
	refresh := c.Query("refresh") == "1"
	more := c.Query("more") == "1"
	result, err := h.views.List(c.Request.Context(), getOwnerID(c), order, refresh, more)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), getOwnerID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

type notesRequest struct {
	UserNotes string `json:"user_notes"`
}

func (h *ItemHandler) UpdateNotes(c *gin.Context) {
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.items.UpdateNotes(c.Request.Context(), getOwnerID(c), c.Param("id"), req.UserNotes); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

type enrichRequest struct {
	Title        *string  `json:"title"`
	Summary      *string  `json:"summary"`
	Tags         []string `json:"tags"`
	SourceName   *string  `json:"source_name"`
	ThumbnailURL *string  `json:"thumbnail_url"`
}

func (h *ItemHandler) Enrich(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	err := h.items.ApplyEnrichment(c.Request.Context(), getOwnerID(c), c.Param("id"), service.EnrichmentInput{
		Title:        req.Title,
		Summary:      req.Summary,
		Tags:         req.Tags,
		SourceName:   req.SourceName,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

// Delete removes the item from the browse view first, so the response the
// client renders from never contains the row even if the backend write is
// still in flight.
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.views.Delete(c.Request.Context(), getOwnerID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}
