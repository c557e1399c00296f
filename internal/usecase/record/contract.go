package record

import (
	"context"

	"github.com/johnmartinello/recommender/internal/domain"
)

// Writer defines the storage contract for record mutations.
type Writer interface {
	Upsert(ctx context.Context, records []domain.Record) (int, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteByFilter(ctx context.Context, metadata map[string]string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Embedder vectorizes record contents before storage.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
