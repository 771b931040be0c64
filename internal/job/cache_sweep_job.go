package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/cache"
	"github.com/patchwell/linkstash/internal/repo"
)

// CacheSweepJob reclaims space from the two caches that otherwise only shrink
// on read: expired view-cache generations and embedding rows older than the
// retention window.
type CacheSweepJob struct {
	views      *cache.Store
	embeddings *repo.EmbeddingCacheRepo
	retention  time.Duration
}

func NewCacheSweepJob(views *cache.Store, embeddings *repo.EmbeddingCacheRepo, retention time.Duration) *CacheSweepJob {
	return &CacheSweepJob{views: views, embeddings: embeddings, retention: retention}
}

func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

func (j *CacheSweepJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	if j.views != nil {
		removed, err := j.views.Sweep(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("swept expired view cache entries", zap.Int("removed", removed))
		}
	}
	if j.embeddings != nil && j.retention > 0 {
		cutoff := time.Now().Add(-j.retention).Unix()
		removed, err := j.embeddings.DeleteBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("swept stale embedding cache rows", zap.Int64("removed", removed))
		}
	}
	return nil
}
