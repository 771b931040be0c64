package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/notify"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
	"github.com/patchwell/linkstash/internal/pkg/timeutil"
	"github.com/patchwell/linkstash/internal/repo"
)

// ItemService is the authoritative write path: the capture flow inserts,
// the note editor and the enrichment collaborator update, users delete.
// Every successful write publishes a change notification.
type ItemService struct {
	items  *repo.ItemRepo
	embeds *repo.EmbeddingRepo
	hub    *notify.Hub
}

func NewItemService(items *repo.ItemRepo, embeds *repo.EmbeddingRepo, hub *notify.Hub) *ItemService {
	return &ItemService{items: items, embeds: embeds, hub: hub}
}

type CaptureInput struct {
	Kind        string
	Title       string
	OriginalURL string
	UserNotes   string
	Tags        []string
	SourceName  string
}

func (s *ItemService) Capture(ctx context.Context, ownerID string, input CaptureInput) (*model.Item, error) {
	if ownerID == "" {
		return nil, appErr.ErrInvalid
	}
	kind := input.Kind
	if kind == "" {
		kind = model.KindLink
	}
	switch kind {
	case model.KindLink:
		if strings.TrimSpace(input.OriginalURL) == "" {
			return nil, appErr.ErrInvalid
		}
	case model.KindNote:
		if strings.TrimSpace(input.Title) == "" && strings.TrimSpace(input.UserNotes) == "" {
			return nil, appErr.ErrInvalid
		}
	default:
		return nil, appErr.ErrInvalid
	}
	item := &model.Item{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        kind,
		Title:       strings.TrimSpace(input.Title),
		OriginalURL: strings.TrimSpace(input.OriginalURL),
		UserNotes:   input.UserNotes,
		Tags:        normalizeTags(input.Tags),
		SourceName:  strings.TrimSpace(input.SourceName),
		CreatedAt:   timeutil.NowUnix(),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("item captured",
		zap.String("owner_id", ownerID), zap.String("item_id", item.ID), zap.String("kind", kind))
	s.publish(ctx, ownerID)
	return item, nil
}

func (s *ItemService) Get(ctx context.Context, ownerID, itemID string) (*model.Item, error) {
	return s.items.GetByID(ctx, ownerID, itemID)
}

func (s *ItemService) UpdateNotes(ctx context.Context, ownerID, itemID, notes string) error {
	err := s.items.Update(ctx, ownerID, itemID, map[string]interface{}{
		"user_notes": notes,
	}, timeutil.NowUnix())
	if err != nil {
		return err
	}
	s.publish(ctx, ownerID)
	return nil
}

type EnrichmentInput struct {
	Title        *string
	Summary      *string
	Tags         []string
	SourceName   *string
	ThumbnailURL *string
}

// ApplyEnrichment is the write surface the enrichment collaborator calls
// once it has processed a captured URL. Only the enrichment-owned fields can
// change here.
func (s *ItemService) ApplyEnrichment(ctx context.Context, ownerID, itemID string, input EnrichmentInput) error {
	fields := map[string]interface{}{}
	if input.Title != nil {
		fields["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Summary != nil {
		fields["summary"] = *input.Summary
	}
	if input.Tags != nil {
		fields["tags"] = strings.Join(normalizeTags(input.Tags), ",")
	}
	if input.SourceName != nil {
		fields["source_name"] = strings.TrimSpace(*input.SourceName)
	}
	if input.ThumbnailURL != nil {
		fields["thumbnail_url"] = strings.TrimSpace(*input.ThumbnailURL)
	}
	if len(fields) == 0 {
		return appErr.ErrInvalid
	}
	if err := s.items.Update(ctx, ownerID, itemID, fields, timeutil.NowUnix()); err != nil {
		return err
	}
	s.publish(ctx, ownerID)
	return nil
}

// Delete satisfies the pagination controller's Deleter so the optimistic
// removal and the authoritative delete share one code path. Stored
// embeddings go with the item; a failure there is logged, not surfaced,
// since the row itself is already gone.
func (s *ItemService) Delete(ctx context.Context, ownerID, itemID string, mtime int64) error {
	if err := s.items.Delete(ctx, ownerID, itemID, mtime); err != nil {
		return err
	}
	if s.embeds != nil {
		if err := s.embeds.DeleteByItemID(ctx, ownerID, itemID); err != nil {
			logutil.GetLogger(ctx).Warn("failed to delete item embedding",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return nil
}

func (s *ItemService) publish(ctx context.Context, ownerID string) {
	if s.hub != nil {
		s.hub.Publish(ctx, ownerID)
	}
}

func normalizeTags(tags []string) []string {
	uniq := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, tag := range tags {
		normalized := strings.TrimSpace(tag)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, normalized)
	}
	return uniq
}
