package repo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
	"github.com/patchwell/linkstash/internal/repo"
	"github.com/patchwell/linkstash/internal/testutil"
)

func newItem(ownerID string, createdAt int64) *model.Item {
	return &model.Item{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        model.KindLink,
		Title:       "saved link",
		OriginalURL: "https://example.com",
		Tags:        []string{"a", "b"},
		CreatedAt:   createdAt,
	}
}

func TestItemRepoCreateGetDelete(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	items := repo.NewItemRepo(db)
	owner := uuid.NewString()

	item := newItem(owner, 100)
	require.NoError(t, items.Create(context.Background(), item))

	got, err := items.GetByID(context.Background(), owner, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.Title, got.Title)
	require.Equal(t, []string{"a", "b"}, got.Tags)

	// other owners never see the row
	_, err = items.GetByID(context.Background(), uuid.NewString(), item.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, items.Delete(context.Background(), owner, item.ID, 200))
	_, err = items.GetByID(context.Background(), owner, item.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// the soft-deleted row cannot be deleted again
	err = items.Delete(context.Background(), owner, item.ID, 300)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestItemRepoFetchPageOrdersNewestFirst(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	items := repo.NewItemRepo(db)
	owner := uuid.NewString()

	for i := 0; i < 7; i++ {
		it := newItem(owner, int64(100+i))
		it.Title = fmt.Sprintf("link %d", i)
		require.NoError(t, items.Create(context.Background(), it))
	}

	page, err := items.FetchPage(context.Background(), owner, 0, 5)
	require.NoError(t, err)
	require.Len(t, page, 5)
	require.Equal(t, "link 6", page[0].Title)

	rest, err := items.FetchPage(context.Background(), owner, 5, 5)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, "link 0", rest[1].Title)
}

func TestItemRepoUpdateIgnoresUnknownColumns(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	items := repo.NewItemRepo(db)
	owner := uuid.NewString()

	item := newItem(owner, 100)
	require.NoError(t, items.Create(context.Background(), item))

	err := items.Update(context.Background(), owner, item.ID, map[string]interface{}{
		"user_notes": "remember this",
		"owner_id":   "someone-else",
		"state":      99,
	}, 150)
	require.NoError(t, err)

	got, err := items.GetByID(context.Background(), owner, item.ID)
	require.NoError(t, err)
	require.Equal(t, "remember this", got.UserNotes)
	require.Equal(t, owner, got.OwnerID)
	require.Equal(t, int64(150), got.UpdatedAt)
}

func TestItemRepoListByIDs(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	items := repo.NewItemRepo(db)
	owner := uuid.NewString()

	a := newItem(owner, 100)
	b := newItem(owner, 200)
	require.NoError(t, items.Create(context.Background(), a))
	require.NoError(t, items.Create(context.Background(), b))

	got, err := items.ListByIDs(context.Background(), owner, []string{a.ID, b.ID, uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = items.ListByIDs(context.Background(), owner, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestItemRepoCreateConflict(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	items := repo.NewItemRepo(db)
	owner := uuid.NewString()

	item := newItem(owner, 100)
	require.NoError(t, items.Create(context.Background(), item))
	err := items.Create(context.Background(), item)
	require.ErrorIs(t, err, appErr.ErrConflict)
}
