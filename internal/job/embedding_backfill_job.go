package job

import (
	"context"

	"github.com/patchwell/linkstash/internal/service"
)

// EmbeddingBackfillJob periodically embeds items the enrichment side has not
// processed yet, so the vector signal catches up with captures.
type EmbeddingBackfillJob struct {
	embeddings *service.EmbeddingService
	batch      int
}

func NewEmbeddingBackfillJob(embeddings *service.EmbeddingService, batch int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{embeddings: embeddings, batch: batch}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.embeddings == nil {
		return nil
	}
	return j.embeddings.ProcessStale(ctx, j.batch)
}
