package search

import (
	"context"
	"fmt"

	"github.com/johnmartinello/recommender/internal/domain/search/request"
	"github.com/johnmartinello/recommender/internal/domain/search/result"
)

// Service orchestrates similarity search: embed the query text once, compose
// the predicate-and-ranking plan, execute it exactly once, and shape rows.
type Service struct {
	repo    Repository
	builder Builder
	embed   Embedder
}

// New creates a search service.
func New(repo Repository, builder Builder, embed Embedder) *Service {
	return &Service{repo: repo, builder: builder, embed: embed}
}

// Search runs one similarity query. The store's ranking is authoritative:
// rows are mapped in the order returned, never re-sorted.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	embResult, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	q, err := s.builder.Build(embResult.Embedding, req.Filters(), req.Limit())
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	results := make([]result.Result, len(rows))
	for i, row := range rows {
		results[i] = result.New(row.ID, row.Title, row.Metadata, row.Contents, row.Similarity)
	}
	return results, nil
}
