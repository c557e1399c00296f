package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/johnmartinello/recommender/internal/domain"
)

// Recognized metadata filter keys. Predicates are always composed in this
// order so positional parameter binding stays reproducible.
const (
	KeyGenres    = "genres"
	KeyKeywords  = "keywords"
	KeyLanguage  = "original_language"
	KeyTimeRange = "time_range"
)

// Filters is the parsed, validated form of a request's metadata filter map.
// Unrecognized keys are dropped during parsing; recognized keys with empty
// values contribute nothing.
type Filters struct {
	genreTerms   []string
	keywordTerms []string
	language     string
	timeRange    *TimeRange
}

// TimeRange is an inclusive date range over the record's date metadata field.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Parse validates a raw filter map into Filters.
//
// genres/keywords accept a comma-joined tag string; terms are trimmed and
// empty terms dropped. original_language accepts a plain string. time_range
// accepts either a bare year pair "YYYY-YYYY" (normalized to Jan 1 / Dec 31
// calendar boundaries in UTC) or an already-resolved TimeRange, used
// verbatim. Malformed values fail with domain.ErrInvalidFilter; keys outside
// the recognized set are ignored.
func Parse(raw map[string]any) (Filters, error) {
	var f Filters

	for key, value := range raw {
		switch key {
		case KeyGenres:
			terms, err := termsValue(key, value)
			if err != nil {
				return Filters{}, err
			}
			f.genreTerms = terms
		case KeyKeywords:
			terms, err := termsValue(key, value)
			if err != nil {
				return Filters{}, err
			}
			f.keywordTerms = terms
		case KeyLanguage:
			lang, err := stringValue(key, value)
			if err != nil {
				return Filters{}, err
			}
			f.language = strings.TrimSpace(lang)
		case KeyTimeRange:
			tr, err := timeRangeValue(value)
			if err != nil {
				return Filters{}, err
			}
			f.timeRange = tr
		default:
			// Unknown keys are a no-op so metadata can grow without
			// breaking older callers.
		}
	}

	return f, nil
}

// GenreTerms returns the genre filter terms in input order.
func (f Filters) GenreTerms() []string { return f.genreTerms }

// KeywordTerms returns the keyword filter terms in input order.
func (f Filters) KeywordTerms() []string { return f.keywordTerms }

// Language returns the exact-match original language, empty when unset.
func (f Filters) Language() string { return f.language }

// TimeRange returns the resolved date range, nil when unset.
func (f Filters) TimeRange() *TimeRange { return f.timeRange }

// IsEmpty reports whether no filter contributes a predicate.
func (f Filters) IsEmpty() bool {
	return len(f.genreTerms) == 0 && len(f.keywordTerms) == 0 &&
		f.language == "" && f.timeRange == nil
}

// TermCount returns the total number of genre and keyword terms.
func (f Filters) TermCount() int {
	return len(f.genreTerms) + len(f.keywordTerms)
}

func stringValue(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("filter %q: expected string, got %T: %w", key, value, domain.ErrInvalidFilter)
	}
	return s, nil
}

// termsValue splits a comma-joined tag string into trimmed terms.
func termsValue(key string, value any) ([]string, error) {
	s, err := stringValue(key, value)
	if err != nil {
		return nil, err
	}

	var terms []string
	for _, raw := range strings.Split(s, ",") {
		if term := strings.TrimSpace(raw); term != "" {
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func timeRangeValue(value any) (*TimeRange, error) {
	switch v := value.(type) {
	case string:
		return parseYearRange(v)
	case TimeRange:
		return resolvedRange(v)
	case *TimeRange:
		if v == nil {
			return nil, nil
		}
		return resolvedRange(*v)
	default:
		return nil, fmt.Errorf("filter %q: expected year range string or TimeRange, got %T: %w",
			KeyTimeRange, value, domain.ErrInvalidFilter)
	}
}

// parseYearRange normalizes a bare "YYYY-YYYY" pair to calendar boundaries:
// Jan 1 of the start year through Dec 31 of the end year, both UTC.
func parseYearRange(s string) (*TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	startStr, endStr, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("time_range %q: expected \"YYYY-YYYY\": %w", s, domain.ErrInvalidFilter)
	}

	startYear, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("time_range %q: start year is not numeric: %w", s, domain.ErrInvalidFilter)
	}
	endYear, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return nil, fmt.Errorf("time_range %q: end year is not numeric: %w", s, domain.ErrInvalidFilter)
	}
	if startYear > endYear {
		return nil, fmt.Errorf("time_range %q: start year after end year: %w", s, domain.ErrInvalidFilter)
	}

	return &TimeRange{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

func resolvedRange(tr TimeRange) (*TimeRange, error) {
	if tr.Start.IsZero() && tr.End.IsZero() {
		return nil, nil
	}
	if tr.Start.After(tr.End) {
		return nil, fmt.Errorf("time_range: start %s after end %s: %w",
			tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339), domain.ErrInvalidFilter)
	}
	return &TimeRange{Start: tr.Start, End: tr.End}, nil
}
