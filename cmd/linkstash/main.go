package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/ai"
	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/config"
	"github.com/patchwell/linkstash/internal/db"
	"github.com/patchwell/linkstash/internal/embedcache"
	"github.com/patchwell/linkstash/internal/filestore"
	"github.com/patchwell/linkstash/internal/handler"
	"github.com/patchwell/linkstash/internal/job"
	"github.com/patchwell/linkstash/internal/middleware"
	"github.com/patchwell/linkstash/internal/notify"
	"github.com/patchwell/linkstash/internal/rank"
	"github.com/patchwell/linkstash/internal/repo"
	"github.com/patchwell/linkstash/internal/schedule"
	"github.com/patchwell/linkstash/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "linkstash",
		Short: "linkstash capture and retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run linkstash server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	itemRepo := repo.NewItemRepo(database)
	embeddingRepo := repo.NewEmbeddingRepo(database)
	embeddingCacheRepo := repo.NewEmbeddingCacheRepo(database)

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embeddingCacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLSeconds)*time.Second)

	cacheStore, err := cache.Open(cache.Options{
		Dir:        cfg.Cache.Dir,
		MaxItems:   cfg.Cache.MaxItems,
		ByteBudget: cfg.Cache.ByteBudget,
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer cacheStore.Close()

	engine := rank.NewEngine(itemRepo, embeddingRepo, embedder, rank.Options{
		Threshold:     cfg.Search.Threshold,
		MaxResults:    cfg.Search.MaxResults,
		MaxQueryChars: cfg.Search.MaxQueryChars,
	})

	hub := notify.NewHub()
	itemService := service.NewItemService(itemRepo, embeddingRepo, hub)
	embeddingService := service.NewEmbeddingService(embedder, embeddingRepo)
	viewService := service.NewViewService(itemRepo, itemService, cacheStore, hub, uint(cfg.Search.PageSize))
	exportService := service.NewExportService(itemRepo)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.EmbeddingSyncSpec != "" {
		backfill := job.NewEmbeddingBackfillJob(embeddingService, cfg.Jobs.EmbeddingBatch)
		if err := scheduler.AddJob(backfill, cfg.Jobs.EmbeddingSyncSpec); err != nil {
			return fmt.Errorf("schedule embedding backfill: %w", err)
		}
	}
	if cfg.Jobs.CacheSweepSpec != "" {
		retention := time.Duration(cfg.Jobs.CacheRetentionDays) * 24 * time.Hour
		sweep := job.NewCacheSweepJob(cacheStore, embeddingCacheRepo, retention)
		if err := scheduler.AddJob(sweep, cfg.Jobs.CacheSweepSpec); err != nil {
			return fmt.Errorf("schedule cache sweep: %w", err)
		}
	}

	deps := handler.RouterDeps{
		Items:        handler.NewItemHandler(itemService, viewService),
		Search:       handler.NewSearchHandler(engine, viewService, cfg.Search),
		SearchStream: handler.NewSearchStreamHandler(viewService, engine, cfg.Search),
		Cache:        handler.NewCacheHandler(cacheStore, viewService),
		Export:       handler.NewExportHandler(exportService),
		Files:        handler.NewFileHandler(store),
		JWTSecret:    []byte(cfg.JWTSecret),
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RateLimit(300, time.Minute),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/search/stream"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := webEngine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
