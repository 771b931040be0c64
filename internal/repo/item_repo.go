package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/patchwell/linkstash/internal/model"
	"github.com/patchwell/linkstash/internal/pkg/dbutil"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

const (
	ItemStateNormal  = 1
	ItemStateDeleted = 2
)

var itemColumns = []string{
	"id", "owner_id", "kind", "title", "summary", "tags", "source_name",
	"user_notes", "thumbnail_url", "original_url", "created_at", "updated_at",
}

type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) Create(ctx context.Context, item *model.Item) error {
	data := map[string]interface{}{
		"id":            item.ID,
		"owner_id":      item.OwnerID,
		"kind":          item.Kind,
		"title":         item.Title,
		"summary":       item.Summary,
		"tags":          joinTags(item.Tags),
		"source_name":   item.SourceName,
		"user_notes":    item.UserNotes,
		"thumbnail_url": item.ThumbnailURL,
		"original_url":  item.OriginalURL,
		"state":         ItemStateNormal,
		"created_at":    item.CreatedAt,
		"updated_at":    item.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("items", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

// Update applies a partial field update; only columns the enrichment side
// and the note editor are allowed to touch are accepted.
func (r *ItemRepo) Update(ctx context.Context, ownerID, itemID string, fields map[string]interface{}, mtime int64) error {
	update := map[string]interface{}{
		"updated_at": mtime,
	}
	for _, col := range []string{"title", "summary", "tags", "source_name", "user_notes", "thumbnail_url"} {
		if v, ok := fields[col]; ok {
			update[col] = v
		}
	}
	where := map[string]interface{}{
		"id":       itemID,
		"owner_id": ownerID,
		"state":    ItemStateNormal,
	}
	sqlStr, args, err := builder.BuildUpdate("items", where, update)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ItemRepo) GetByID(ctx context.Context, ownerID, itemID string) (*model.Item, error) {
	where := map[string]interface{}{
		"id":       itemID,
		"owner_id": ownerID,
		"state":    ItemStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("items", where, itemColumns)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	item, err := scanItem(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchPage returns one page of the owner's items, newest first by
// insertion time. This is the authoritative paging interface the pagination
// controller consumes.
func (r *ItemRepo) FetchPage(ctx context.Context, ownerID string, offset, limit uint) ([]model.Item, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"state":    ItemStateNormal,
		"_orderby": "created_at desc, id asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("items", where, itemColumns)
	if err != nil {
		return nil, err
	}
	return r.queryItems(ctx, dbutil.Rebind(sqlStr), args...)
}

// ListSearchable returns every candidate row the ranking engine scores.
func (r *ItemRepo) ListSearchable(ctx context.Context, ownerID string) ([]model.Item, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"state":    ItemStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("items", where, itemColumns)
	if err != nil {
		return nil, err
	}
	return r.queryItems(ctx, dbutil.Rebind(sqlStr), args...)
}

func (r *ItemRepo) ListByIDs(ctx context.Context, ownerID string, itemIDs []string) ([]model.Item, error) {
	if len(itemIDs) == 0 {
		return []model.Item{}, nil
	}
	query := `SELECT ` + strings.Join(itemColumns, ", ") + ` FROM items WHERE owner_id = ? AND state = ? AND id IN (?)`
	query, args, err := sqlx.In(query, ownerID, ItemStateNormal, itemIDs)
	if err != nil {
		return nil, err
	}
	return r.queryItems(ctx, dbutil.Rebind(query), args...)
}

func (r *ItemRepo) Count(ctx context.Context, ownerID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE owner_id = $1 AND state = $2`, ownerID, ItemStateNormal)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ItemRepo) Delete(ctx context.Context, ownerID, itemID string, mtime int64) error {
	where := map[string]interface{}{
		"id":       itemID,
		"owner_id": ownerID,
		"state":    ItemStateNormal,
	}
	update := map[string]interface{}{
		"state":      ItemStateDeleted,
		"updated_at": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("items", where, update)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ItemRepo) queryItems(ctx context.Context, query string, args ...interface{}) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(rows *sql.Rows) (model.Item, error) {
	var item model.Item
	var tags string
	err := rows.Scan(&item.ID, &item.OwnerID, &item.Kind, &item.Title, &item.Summary, &tags,
		&item.SourceName, &item.UserNotes, &item.ThumbnailURL, &item.OriginalURL,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return model.Item{}, err
	}
	item.Tags = splitTags(tags)
	return item, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
