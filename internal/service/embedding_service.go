package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/ai"
	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/pkg/timeutil"
	"github.com/patchwell/linkstash/internal/repo"
)

// EmbeddingService keeps stored title embeddings in step with item edits.
// The embedding function is an opaque, possibly absent collaborator; when it
// is unavailable the backfill simply stalls and search runs on text signals
// alone.
type EmbeddingService struct {
	embedder ai.IEmbedder
	embeds   *repo.EmbeddingRepo
}

func NewEmbeddingService(embedder ai.IEmbedder, embeds *repo.EmbeddingRepo) *EmbeddingService {
	return &EmbeddingService{embedder: embedder, embeds: embeds}
}

func (s *EmbeddingService) SyncEmbedding(ctx context.Context, ownerID, itemID, title, summary string) error {
	if s == nil || s.embedder == nil || s.embeds == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID), zap.String("item_id", itemID))
	// Title plus summary improves recall over the title alone.
	text := fmt.Sprintf("%s\n%s", title, summary)
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])

	existing, err := s.embeds.GetByItemID(ctx, ownerID, itemID)
	if err == nil && existing.ContentHash == contentHash {
		return nil
	}

	emb, err := s.embedder.Embed(ctx, text, ai.TaskRetrievalDocument)
	if err != nil {
		logger.Warn("failed to generate embedding", zap.Error(err))
		return err
	}
	if err := s.embeds.Save(ctx, &model.ItemEmbedding{
		ItemID:      itemID,
		OwnerID:     ownerID,
		Embedding:   emb,
		ContentHash: contentHash,
		Mtime:       timeutil.NowUnix(),
	}); err != nil {
		logger.Error("failed to save embedding", zap.Error(err))
		return err
	}
	logger.Info("embedding synced")
	return nil
}

// ProcessStale embeds up to batch items whose embedding is missing or older
// than the last edit. Called from the scheduled backfill job.
func (s *EmbeddingService) ProcessStale(ctx context.Context, batch int) error {
	if s == nil || s.embedder == nil || s.embeds == nil {
		return nil
	}
	if batch <= 0 {
		batch = 50
	}
	stale, err := s.embeds.ListStaleItems(ctx, batch)
	if err != nil {
		return err
	}
	for _, item := range stale {
		if err := s.SyncEmbedding(ctx, item.OwnerID, item.ID, item.Title, item.Summary); err != nil {
			// One bad item must not starve the rest of the batch.
			logutil.GetLogger(ctx).Warn("embedding backfill skipped item",
				zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	return nil
}
