package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/middleware"
	"github.com/patchwell/linkstash/internal/pkg/errcode"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
	"github.com/patchwell/linkstash/internal/pkg/response"
)

func getOwnerID(c *gin.Context) string {
	owner, _ := middleware.OwnerID(c)
	return owner
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("owner_id", getOwnerID(c)),
		zap.Error(err))
	switch {
	case appErr.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case appErr.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case appErr.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case appErr.Is(err, appErr.ErrInvalidQuery):
		response.Error(c, errcode.ErrInvalidQuery, "invalid query")
	case appErr.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case appErr.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case appErr.IsStoreUnavailable(err):
		response.Error(c, errcode.ErrStoreUnavailable, "store unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
