package request

import (
	"fmt"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
)

// Request is a validated similarity search query: free text, parsed filters,
// and a result cap. Constructed per call, never persisted.
type Request struct {
	query   string
	filters filter.Filters
	limit   int
}

// New validates and normalizes search parameters.
// A zero limit falls back to DefaultLimit; a negative limit is rejected.
func New(query string, filters filter.Filters, limit int) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidRequest)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("limit must be positive, got %d: %w", limit, domain.ErrInvalidRequest)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{query: query, filters: filters, limit: limit}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Filters returns the parsed metadata filters.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }
