package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Save(ctx context.Context, emb *model.ItemEmbedding) error {
	const query = `
		INSERT INTO item_embeddings (item_id, owner_id, embedding, content_hash, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ItemID, emb.OwnerID, pgvector.NewVector(emb.Embedding), emb.ContentHash, emb.Mtime)
	return err
}

func (r *EmbeddingRepo) GetByItemID(ctx context.Context, ownerID, itemID string) (*model.ItemEmbedding, error) {
	const query = `
		SELECT item_id, owner_id, embedding, content_hash, mtime
		FROM item_embeddings WHERE item_id = $1 AND owner_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, itemID, ownerID)
	var emb model.ItemEmbedding
	var vec pgvector.Vector
	if err := row.Scan(&emb.ItemID, &emb.OwnerID, &vec, &emb.ContentHash, &emb.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	emb.Embedding = vec.Slice()
	return &emb, nil
}

func (r *EmbeddingRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.ItemEmbedding, error) {
	const query = `
		SELECT item_id, owner_id, embedding, content_hash, mtime
		FROM item_embeddings WHERE owner_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ItemEmbedding
	for rows.Next() {
		var emb model.ItemEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.ItemID, &emb.OwnerID, &vec, &emb.ContentHash, &emb.Mtime); err != nil {
			return nil, err
		}
		emb.Embedding = vec.Slice()
		results = append(results, emb)
	}
	return results, rows.Err()
}

func (r *EmbeddingRepo) DeleteByItemID(ctx context.Context, ownerID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM item_embeddings WHERE item_id = $1 AND owner_id = $2`, itemID, ownerID)
	return err
}

// ListStaleItems finds items whose title embedding is missing or older than
// the last edit; the backfill job feeds them to the embedding collaborator.
func (r *EmbeddingRepo) ListStaleItems(ctx context.Context, limit int) ([]model.Item, error) {
	const query = `
		SELECT i.id, i.owner_id, i.title, i.summary
		FROM items i
		LEFT JOIN item_embeddings e ON i.id = e.item_id
		WHERE (e.item_id IS NULL OR GREATEST(i.created_at, i.updated_at) > e.mtime)
			AND i.state = $1
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, ItemStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Summary); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
