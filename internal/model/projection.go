package model

// ItemProjection is the reduced schema kept in the local cache: only what
// list rendering and local filtering need. Embeddings are dropped on purpose
// to bound the cache size.
type ItemProjection struct {
	ID           string   `json:"id" msgpack:"id"`
	Kind         string   `json:"kind" msgpack:"kind"`
	Title        string   `json:"title" msgpack:"title"`
	Tags         []string `json:"tags,omitempty" msgpack:"tags,omitempty"`
	UserNotes    string   `json:"user_notes,omitempty" msgpack:"user_notes,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty" msgpack:"thumbnail_url,omitempty"`
	OriginalURL  string   `json:"original_url,omitempty" msgpack:"original_url,omitempty"`
	CreatedAt    int64    `json:"created_at" msgpack:"created_at"`
	UpdatedAt    int64    `json:"updated_at,omitempty" msgpack:"updated_at,omitempty"`
}

// Project reduces an Item to its cacheable form.
func Project(it Item) ItemProjection {
	return ItemProjection{
		ID:           it.ID,
		Kind:         it.Kind,
		Title:        it.Title,
		Tags:         it.Tags,
		UserNotes:    it.UserNotes,
		ThumbnailURL: it.ThumbnailURL,
		OriginalURL:  it.OriginalURL,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

// Minimal strips a projection down to the last-resort cache tier.
func (p ItemProjection) Minimal() ItemProjection {
	return ItemProjection{
		ID:           p.ID,
		Title:        p.Title,
		ThumbnailURL: p.ThumbnailURL,
	}
}

// Restore converts a projection back to an Item for in-memory use. The
// owner id is supplied by the caller since cache entries are already
// owner-scoped by key.
func (p ItemProjection) Restore(ownerID string) Item {
	return Item{
		ID:           p.ID,
		OwnerID:      ownerID,
		Kind:         p.Kind,
		Title:        p.Title,
		Tags:         p.Tags,
		UserNotes:    p.UserNotes,
		ThumbnailURL: p.ThumbnailURL,
		OriginalURL:  p.OriginalURL,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
