package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/patchwell/linkstash/internal/config"
	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/pkg/response"
	"github.com/patchwell/linkstash/internal/rank"
	"github.com/patchwell/linkstash/internal/service"
)

type SearchHandler struct {
	engine *rank.Engine
	views  *service.ViewService
	cfg    config.SearchConfig
}

func NewSearchHandler(engine *rank.Engine, views *service.ViewService, cfg config.SearchConfig) *SearchHandler {
	return &SearchHandler{engine: engine, views: views, cfg: cfg}
}

type searchResponse struct {
	Query   string       `json:"query"`
	Matches []rank.Match `json:"matches"`
}

// Search is the one-shot retrieval endpoint. Interactive typing goes through
// the websocket stream instead; this serves share links and scripted
// clients.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	// An empty query means "show everything recent", same as the stream's
	// empty-input state, not an empty match set.
	if strings.TrimSpace(query) == "" {
		res, err := h.views.List(c.Request.Context(), getOwnerID(c), model.SortNewestFirst, false, false)
		if err != nil {
			handleError(c, err)
			return
		}
		matches := make([]rank.Match, 0, len(res.Items))
		for _, it := range res.Items {
			matches = append(matches, rank.Match{Item: it})
		}
		response.Success(c, searchResponse{Query: "", Matches: matches})
		return
	}
	threshold := h.cfg.Threshold
	if value := c.Query("threshold"); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 && parsed <= 1 {
			threshold = parsed
		}
	}
	limit := h.cfg.MaxResults
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 && parsed <= h.cfg.MaxResults {
			limit = parsed
		}
	}
	matches, err := h.engine.Search(c.Request.Context(), getOwnerID(c), query, threshold, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, searchResponse{Query: query, Matches: matches})
}
