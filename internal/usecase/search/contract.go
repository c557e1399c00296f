package search

import (
	"context"

	"github.com/johnmartinello/recommender/internal/db"
	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/domain/search/filter"
)

// Repository defines the storage contract for search execution.
type Repository interface {
	Query(ctx context.Context, q *db.SearchQuery) ([]db.SearchRow, error)
}

// Builder composes a similarity query from an embedding, filters and a limit.
type Builder interface {
	Build(vec []float32, f filter.Filters, limit int) (*db.SearchQuery, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
