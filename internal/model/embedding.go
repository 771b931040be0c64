package model

type ItemEmbedding struct {
	ItemID      string    `json:"item_id"`
	OwnerID     string    `json:"owner_id"`
	Embedding   []float32 `json:"embedding"`
	ContentHash string    `json:"content_hash"`
	Mtime       int64     `json:"mtime"`
}
