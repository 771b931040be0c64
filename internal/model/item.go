package model

// Item is a saved piece of content (link or note) belonging to one owner.
// Embeddings are filled asynchronously by the enrichment side and may be nil
// until then.
type Item struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Tags         []string  `json:"tags"`
	SourceName   string    `json:"source_name"`
	UserNotes    string    `json:"user_notes"`
	ThumbnailURL string    `json:"thumbnail_url"`
	OriginalURL  string    `json:"original_url"`
	CreatedAt    int64     `json:"created_at"`
	UpdatedAt    int64     `json:"updated_at"`
	TitleEmb     []float32 `json:"-"`
	ContentEmb   []float32 `json:"-"`
}

const (
	KindLink = "link"
	KindNote = "note"
)

// ModifiedAt is the effective modification time; items never edited fall
// back to their creation time.
func (it *Item) ModifiedAt() int64 {
	if it.UpdatedAt > 0 {
		return it.UpdatedAt
	}
	return it.CreatedAt
}
