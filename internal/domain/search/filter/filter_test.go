package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/johnmartinello/recommender/internal/domain"
)

func TestParse_GenresAndKeywords(t *testing.T) {
	f, err := Parse(map[string]any{
		"genres":   "Comedy, Family",
		"keywords": " kid,pentagon , hacker ",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantGenres := []string{"Comedy", "Family"}
	if got := f.GenreTerms(); len(got) != 2 || got[0] != wantGenres[0] || got[1] != wantGenres[1] {
		t.Errorf("genre terms = %v, want %v", got, wantGenres)
	}

	wantKeywords := []string{"kid", "pentagon", "hacker"}
	for i, term := range f.KeywordTerms() {
		if term != wantKeywords[i] {
			t.Errorf("keyword term[%d] = %q, want %q", i, term, wantKeywords[i])
		}
	}

	if f.TermCount() != 5 {
		t.Errorf("TermCount = %d, want 5", f.TermCount())
	}
}

func TestParse_EmptyValuesContributeNothing(t *testing.T) {
	f, err := Parse(map[string]any{
		"genres":            "",
		"keywords":          " , , ",
		"original_language": "",
		"time_range":        "",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.IsEmpty() {
		t.Errorf("expected empty filters, got %+v", f)
	}
}

func TestParse_UnrecognizedKeysIgnored(t *testing.T) {
	f, err := Parse(map[string]any{
		"director":   "Nolan",
		"popularity": 42.0,
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.IsEmpty() {
		t.Errorf("unrecognized keys must not contribute predicates, got %+v", f)
	}
}

func TestParse_Language(t *testing.T) {
	f, err := Parse(map[string]any{"original_language": " en "})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Language() != "en" {
		t.Errorf("language = %q, want %q", f.Language(), "en")
	}
}

func TestParse_YearRangeNormalization(t *testing.T) {
	f, err := Parse(map[string]any{"time_range": "1960-2020"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tr := f.TimeRange()
	if tr == nil {
		t.Fatal("expected time range")
	}

	wantStart := time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)
	if !tr.Start.Equal(wantStart) {
		t.Errorf("start = %s, want %s", tr.Start, wantStart)
	}
	if !tr.End.Equal(wantEnd) {
		t.Errorf("end = %s, want %s", tr.End, wantEnd)
	}
}

func TestParse_ReversedYearRange(t *testing.T) {
	_, err := Parse(map[string]any{"time_range": "2020-1960"})
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestParse_NonNumericYears(t *testing.T) {
	for _, input := range []string{"sixties-2020", "1960-now", "1960"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(map[string]any{"time_range": input})
			if !errors.Is(err, domain.ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter for %q, got %v", input, err)
			}
		})
	}
}

func TestParse_ResolvedTimestampsVerbatim(t *testing.T) {
	start := time.Date(1970, time.June, 15, 12, 30, 0, 0, time.UTC)
	end := time.Date(1999, time.March, 1, 0, 0, 0, 0, time.UTC)

	f, err := Parse(map[string]any{"time_range": TimeRange{Start: start, End: end}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tr := f.TimeRange()
	if tr == nil || !tr.Start.Equal(start) || !tr.End.Equal(end) {
		t.Errorf("resolved timestamps not used verbatim: %+v", tr)
	}
}

func TestParse_ResolvedTimestampsReversed(t *testing.T) {
	tr := TimeRange{
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := Parse(map[string]any{"time_range": tr})
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestParse_WrongValueType(t *testing.T) {
	for key, value := range map[string]any{
		"genres":     42,
		"time_range": []int{1960, 2020},
	} {
		t.Run(key, func(t *testing.T) {
			_, err := Parse(map[string]any{key: value})
			if !errors.Is(err, domain.ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter for %s=%v, got %v", key, value, err)
			}
		})
	}
}
