package middleware

import (
	"strings"

	"github.com/patchwell/linkstash/internal/pkg/errcode"
	"github.com/patchwell/linkstash/internal/pkg/jwt"
	"github.com/patchwell/linkstash/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextOwnerIDKey = "owner_id"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization header")
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(tokenString, secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		if claims.OwnerID == "" {
			response.Error(c, errcode.ErrUnauthorized, "token carries no owner")
			c.Abort()
			return
		}
		c.Set(ContextOwnerIDKey, claims.OwnerID)
		c.Next()
	}
}

// OwnerID reads the owner set by JWTAuth; second value is false when the
// request never passed auth.
func OwnerID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextOwnerIDKey)
	if !ok {
		return "", false
	}
	owner, ok := v.(string)
	return owner, ok && owner != ""
}

// RequireOwner is OwnerID plus the error response, for handlers.
func RequireOwner(c *gin.Context) (string, bool) {
	owner, ok := OwnerID(c)
	if !ok {
		response.Error(c, errcode.ErrUnauthorized, "not authenticated")
		c.Abort()
		return "", false
	}
	return owner, true
}
