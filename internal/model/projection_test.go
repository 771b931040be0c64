package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patchwell/linkstash/internal/model"
)

func TestProjectDropsEmbeddingsAndRestores(t *testing.T) {
	item := model.Item{
		ID:           "item-1",
		OwnerID:      "owner-1",
		Kind:         model.KindLink,
		Title:        "a title",
		Summary:      "a summary",
		Tags:         []string{"x"},
		UserNotes:    "notes",
		ThumbnailURL: "https://example.com/t.png",
		OriginalURL:  "https://example.com",
		CreatedAt:    100,
		UpdatedAt:    200,
		TitleEmb:     []float32{1, 2},
		ContentEmb:   []float32{3, 4},
	}

	p := model.Project(item)
	restored := p.Restore("owner-1")

	require.Equal(t, item.ID, restored.ID)
	require.Equal(t, item.Title, restored.Title)
	require.Equal(t, item.Tags, restored.Tags)
	require.Equal(t, item.CreatedAt, restored.CreatedAt)
	require.Equal(t, item.UpdatedAt, restored.UpdatedAt)
	require.Nil(t, restored.TitleEmb)
	require.Nil(t, restored.ContentEmb)
	// summary is not part of the projection
	require.Empty(t, restored.Summary)
}

func TestMinimalKeepsFirstScreenFields(t *testing.T) {
	p := model.ItemProjection{
		ID:           "item-1",
		Kind:         model.KindNote,
		Title:        "a title",
		UserNotes:    "notes",
		ThumbnailURL: "https://example.com/t.png",
		CreatedAt:    100,
	}
	m := p.Minimal()
	require.Equal(t, "item-1", m.ID)
	require.Equal(t, "a title", m.Title)
	require.Equal(t, "https://example.com/t.png", m.ThumbnailURL)
	require.Empty(t, m.Kind)
	require.Empty(t, m.UserNotes)
	require.Zero(t, m.CreatedAt)
}

func TestModifiedAtFallsBackToCreatedAt(t *testing.T) {
	created := model.Item{CreatedAt: 100}
	require.Equal(t, int64(100), created.ModifiedAt())

	edited := model.Item{CreatedAt: 100, UpdatedAt: 200}
	require.Equal(t, int64(200), edited.ModifiedAt())
}
