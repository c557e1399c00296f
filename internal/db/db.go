package db

import (
	"context"
	"time"

	"github.com/johnmartinello/recommender/internal/domain"
)

// Store is the record store facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	SchemaManager
	RecordWriter
	Querier
	Close() error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchemaManager owns the table and ANN index lifecycle.
type SchemaManager interface {
	CreateSchema(ctx context.Context) error
	CreateIndex(ctx context.Context) error
	DropIndex(ctx context.Context) error
}

// RecordWriter provides bulk mutation operations. Upsert is idempotent per
// record ID (insert-or-replace all fields). The three delete operations are
// intentionally separate; criteria arbitration happens in the use case layer.
type RecordWriter interface {
	Upsert(ctx context.Context, records []domain.Record) (int, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteByFilter(ctx context.Context, metadata map[string]string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Querier executes a built similarity query and returns ranked rows in
// store order.
type Querier interface {
	Query(ctx context.Context, q *SearchQuery) ([]SearchRow, error)
}

// SearchRow is a single row from a similarity query, in canonical column
// shape: id, title, metadata, contents, similarity.
type SearchRow struct {
	ID         string
	Title      string
	Metadata   map[string]any
	Contents   string
	Similarity float64
}
