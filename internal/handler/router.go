package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/patchwell/linkstash/internal/middleware"
)

type RouterDeps struct {
	Items        *ItemHandler
	Search       *SearchHandler
	SearchStream *SearchStreamHandler
	Cache        *CacheHandler
	Export       *ExportHandler
	Files        *FileHandler
	JWTSecret    []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/items", deps.Items.Capture)
	authGroup.GET("/items", deps.Items.List)
	authGroup.GET("/items/:id", deps.Items.Get)
	authGroup.PUT("/items/:id/notes", deps.Items.UpdateNotes)
	authGroup.PUT("/items/:id/enrichment", deps.Items.Enrich)
	authGroup.DELETE("/items/:id", deps.Items.Delete)

	authGroup.GET("/search", deps.Search.Search)
	authGroup.GET("/search/stream", deps.SearchStream.Stream)

	authGroup.GET("/cache", deps.Cache.Info)
	authGroup.DELETE("/cache", deps.Cache.Clear)

	authGroup.GET("/export", deps.Export.Export)
	authGroup.POST("/files/upload", deps.Files.Upload)

	api.GET("/files/:key", deps.Files.Get)
}
