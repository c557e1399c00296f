package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// MovieRow is one raw TMDB dataset row, pre-cleaning.
type MovieRow struct {
	ID                  string
	Title               string
	Overview            string
	Genres              string
	Keywords            string
	OriginalLanguage    string
	PosterPath          string
	ProductionCompanies string
	ProductionCountries string
	ReleaseDate         time.Time
	Popularity          float64
	Runtime             float64
	VoteCount           float64
	Budget              float64
	Revenue             float64
}

// movieColumns holds the resolved column indexes of the TMDB CSV.
type movieColumns struct {
	id          int
	title       int
	overview    int
	genres      int
	keywords    int
	language    int
	posterPath  int
	companies   int
	countries   int
	releaseDate int
	popularity  int
	runtime     int
	voteCount   int
	budget      int
	revenue     int
}

// resolveMovieColumns finds column indexes by header name.
func resolveMovieColumns(header []string) (movieColumns, error) {
	cols := movieColumns{
		id: -1, title: -1, overview: -1, genres: -1, keywords: -1,
		language: -1, posterPath: -1, companies: -1, countries: -1,
		releaseDate: -1, popularity: -1, runtime: -1, voteCount: -1,
		budget: -1, revenue: -1,
	}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "id":
			cols.id = i
		case "title":
			cols.title = i
		case "overview":
			cols.overview = i
		case "genres":
			cols.genres = i
		case "keywords":
			cols.keywords = i
		case "original_language":
			cols.language = i
		case "poster_path":
			cols.posterPath = i
		case "production_companies":
			cols.companies = i
		case "production_countries":
			cols.countries = i
		case "release_date":
			cols.releaseDate = i
		case "popularity":
			cols.popularity = i
		case "runtime":
			cols.runtime = i
		case "vote_count":
			cols.voteCount = i
		case "budget":
			cols.budget = i
		case "revenue":
			cols.revenue = i
		}
	}

	for name, idx := range map[string]int{
		"id": cols.id, "title": cols.title, "overview": cols.overview,
		"genres": cols.genres, "keywords": cols.keywords,
		"release_date": cols.releaseDate,
	} {
		if idx < 0 {
			return cols, fmt.Errorf("csv header is missing required column %q", name)
		}
	}
	return cols, nil
}

// Reader streams movie rows out of a TMDB CSV export. Rows that fail the
// dataset quality rules are counted and dropped, duplicate ids keep the
// first occurrence.
type Reader struct {
	csv     *csv.Reader
	cols    movieColumns
	seen    map[string]struct{}
	dropped int
}

// NewReader wraps a CSV stream and resolves its header.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows, cleaning drops them

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := resolveMovieColumns(header)
	if err != nil {
		return nil, err
	}

	return &Reader{csv: cr, cols: cols, seen: make(map[string]struct{})}, nil
}

// Dropped returns the number of rows rejected by the quality rules so far.
func (r *Reader) Dropped() int { return r.dropped }

// readMovieCallback is invoked per clean row. seq is the sequential clean
// row number. Returning false stops the read.
type readMovieCallback func(row *MovieRow, seq int) bool

// ReadMovies streams clean rows into cb. maxRows=0 means no limit.
func (r *Reader) ReadMovies(maxRows int, cb readMovieCallback) error {
	seq := 0
	for {
		if maxRows > 0 && seq >= maxRows {
			return nil
		}

		fields, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv row: %w", err)
		}

		row, ok := r.parseRow(fields)
		if !ok {
			r.dropped++
			continue
		}
		if _, dup := r.seen[row.ID]; dup {
			r.dropped++
			continue
		}
		r.seen[row.ID] = struct{}{}

		if !cb(row, seq) {
			return nil
		}
		seq++
	}
}

// parseRow converts raw CSV fields into a MovieRow, applying the dataset
// quality rules: non-empty overview/genres/keywords, popularity above 1,
// runtime in (0, 300), release year 1900-2024, more than 10 votes, budget
// and revenue above 1000.
func (r *Reader) parseRow(fields []string) (*MovieRow, bool) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(fields) {
			return ""
		}
		return fields[idx]
	}

	row := MovieRow{
		ID:                  strings.TrimSpace(get(r.cols.id)),
		Title:               strings.TrimSpace(get(r.cols.title)),
		Overview:            strings.TrimSpace(get(r.cols.overview)),
		Genres:              get(r.cols.genres),
		Keywords:            get(r.cols.keywords),
		OriginalLanguage:    strings.TrimSpace(get(r.cols.language)),
		PosterPath:          strings.TrimSpace(get(r.cols.posterPath)),
		ProductionCompanies: get(r.cols.companies),
		ProductionCountries: get(r.cols.countries),
	}

	if row.ID == "" || row.Overview == "" || row.Genres == "" || row.Keywords == "" {
		return nil, false
	}

	var err error
	if row.ReleaseDate, err = time.ParseInLocation("2006-01-02", get(r.cols.releaseDate), time.UTC); err != nil {
		return nil, false
	}
	if year := row.ReleaseDate.Year(); year < 1900 || year > 2024 {
		return nil, false
	}

	if row.Popularity = parseFloat(get(r.cols.popularity)); row.Popularity <= 1 {
		return nil, false
	}
	if row.Runtime = parseFloat(get(r.cols.runtime)); row.Runtime <= 0 || row.Runtime >= 300 {
		return nil, false
	}
	if row.VoteCount = parseFloat(get(r.cols.voteCount)); row.VoteCount <= 10 {
		return nil, false
	}
	if row.Budget = parseFloat(get(r.cols.budget)); row.Budget <= 1000 {
		return nil, false
	}
	if row.Revenue = parseFloat(get(r.cols.revenue)); row.Revenue <= 1000 {
		return nil, false
	}

	return &row, true
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
