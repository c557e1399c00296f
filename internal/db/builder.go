package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/domain/search/filter"
)

// timestampLayout is the wire format for time range parameters.
const timestampLayout = time.RFC3339

// SearchQuery is a fully built similarity query: one SQL statement and the
// positional parameters matching its placeholders in order.
type SearchQuery struct {
	SQL    string
	Params []any
}

// QueryBuilder composes similarity queries over one collection table.
// The date metadata field is collection configuration (release_date or
// created_at), never inferred from data.
type QueryBuilder struct {
	table     string
	dateField string
}

// NewQueryBuilder creates a builder for the given table and date field.
func NewQueryBuilder(table, dateField string) *QueryBuilder {
	return &QueryBuilder{table: table, dateField: dateField}
}

// Build deterministically composes a single similarity query from a query
// embedding, parsed filters, and a result limit.
//
// The base predicate is TRUE; each recognized filter appends one conjunct,
// always in the order genres, keywords, original_language, time_range, so
// parameter positions are reproducible for identical input. Ranking is by
// ascending cosine distance regardless of filters; the returned similarity
// is 1 - distance over the same vector placeholder encoding, so score and
// order can never diverge.
//
// Parameter order: query vector, one %term% per genre then keyword term,
// language, range start, range end, query vector again (ORDER BY), limit.
func (b *QueryBuilder) Build(vec []float32, f filter.Filters, limit int) (*SearchQuery, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("query vector is required: %w", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d: %w", limit, domain.ErrInvalidRequest)
	}

	// One canonical encoding bound to both the SELECT and ORDER BY
	// placeholders.
	qvec := pgvector.NewVector(vec)

	var sb strings.Builder
	params := make([]any, 0, 4+f.TermCount())
	params = append(params, qvec)

	fmt.Fprintf(&sb,
		"SELECT id, title, metadata, contents, 1 - (embedding <=> $1) AS similarity FROM %s WHERE TRUE",
		b.table,
	)

	params = appendTermsPredicate(&sb, params, filter.KeyGenres, f.GenreTerms())
	params = appendTermsPredicate(&sb, params, filter.KeyKeywords, f.KeywordTerms())

	if lang := f.Language(); lang != "" {
		params = append(params, lang)
		fmt.Fprintf(&sb, " AND metadata->>'%s' = $%d", filter.KeyLanguage, len(params))
	}

	if tr := f.TimeRange(); tr != nil {
		params = append(params,
			tr.Start.UTC().Format(timestampLayout),
			tr.End.UTC().Format(timestampLayout),
		)
		fmt.Fprintf(&sb, " AND (metadata->>'%s')::timestamp BETWEEN $%d AND $%d",
			b.dateField, len(params)-1, len(params))
	}

	params = append(params, qvec)
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $%d", len(params))

	params = append(params, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(params))

	return &SearchQuery{SQL: sb.String(), Params: params}, nil
}

// appendTermsPredicate appends one OR-disjunction conjunct of
// case-insensitive substring checks, one per term. Matching is deliberately
// ILIKE-based: the tag field is a free comma-joined string, not a
// normalized set.
func appendTermsPredicate(sb *strings.Builder, params []any, key string, terms []string) []any {
	if len(terms) == 0 {
		return params
	}

	conditions := make([]string, len(terms))
	for i, term := range terms {
		params = append(params, "%"+term+"%")
		conditions[i] = fmt.Sprintf("metadata->>'%s' ILIKE $%d", key, len(params))
	}
	sb.WriteString(" AND (" + strings.Join(conditions, " OR ") + ")")
	return params
}
