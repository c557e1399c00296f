package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/domain"
)

// Service handles record mutations with automatic vectorization.
type Service struct {
	store  Writer
	embed  Embedder
	dims   int
	logger *zap.Logger
}

// New creates a record service. dims is the collection-wide embedding
// dimensionality every stored vector must match.
func New(store Writer, embed Embedder, dims int, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, dims: dims, logger: logger}
}

// UpsertResult reports the outcome of a batch upsert.
type UpsertResult struct {
	Upserted int
	Skipped  int
}

// Upsert validates and stores a batch of records, embedding contents for
// records that arrive without a vector. Records in a batch are independent:
// a bad record is logged and skipped, the rest proceed. The store write
// itself is one transaction and fails atomically.
func (s *Service) Upsert(ctx context.Context, records []domain.Record) (UpsertResult, error) {
	if len(records) == 0 {
		return UpsertResult{}, fmt.Errorf("no records provided: %w", domain.ErrInvalidRequest)
	}

	valid := make([]domain.Record, 0, len(records))
	skipped := 0

	for i := range records {
		r := records[i]

		if err := r.Validate(s.dims); err != nil {
			// One bad record must not abort the batch.
			s.logger.Warn("Skipping invalid record", zap.String("id", r.ID), zap.Error(err))
			skipped++
			continue
		}

		if len(r.Embedding) == 0 {
			embResult, err := s.embed.Embed(ctx, r.Contents)
			if err != nil {
				s.logger.Warn("Skipping record that failed to embed",
					zap.String("id", r.ID), zap.Error(err))
				skipped++
				continue
			}
			if len(embResult.Embedding) != s.dims {
				s.logger.Warn("Skipping record with mismatched embedding",
					zap.String("id", r.ID),
					zap.Int("got", len(embResult.Embedding)),
					zap.Int("want", s.dims),
				)
				skipped++
				continue
			}
			r.Embedding = embResult.Embedding
		}

		valid = append(valid, r)
	}

	if len(valid) == 0 {
		return UpsertResult{Skipped: skipped},
			fmt.Errorf("no valid records in batch of %d: %w", len(records), domain.ErrInvalidRequest)
	}

	n, err := s.store.Upsert(ctx, valid)
	if err != nil {
		return UpsertResult{Skipped: skipped}, fmt.Errorf("upsert records: %w", err)
	}

	return UpsertResult{Upserted: n, Skipped: skipped}, nil
}

// DeleteCriteria selects records for deletion. Exactly one criterion must
// be set.
type DeleteCriteria struct {
	IDs    []string
	Filter map[string]string
	All    bool
}

// Delete removes records by exactly one of: ids, metadata filter, or all.
// Zero or multiple criteria fail with domain.ErrInvalidRequest before any
// mutation happens.
func (s *Service) Delete(ctx context.Context, c DeleteCriteria) (int64, error) {
	criteria := 0
	if len(c.IDs) > 0 {
		criteria++
	}
	if len(c.Filter) > 0 {
		criteria++
	}
	if c.All {
		criteria++
	}
	if criteria != 1 {
		return 0, fmt.Errorf(
			"provide exactly one of: ids, filter, or delete_all: %w", domain.ErrInvalidRequest)
	}

	switch {
	case c.All:
		n, err := s.store.DeleteAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("delete all: %w", err)
		}
		s.logger.Info("Deleted all records", zap.Int64("count", n))
		return n, nil
	case len(c.IDs) > 0:
		n, err := s.store.DeleteByIDs(ctx, c.IDs)
		if err != nil {
			return 0, fmt.Errorf("delete by ids: %w", err)
		}
		s.logger.Info("Deleted records by id", zap.Int64("count", n))
		return n, nil
	default:
		n, err := s.store.DeleteByFilter(ctx, c.Filter)
		if err != nil {
			return 0, fmt.Errorf("delete by filter: %w", err)
		}
		s.logger.Info("Deleted records by metadata filter", zap.Int64("count", n))
		return n, nil
	}
}
