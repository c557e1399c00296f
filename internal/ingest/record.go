package ingest

import (
	"time"

	"github.com/johnmartinello/recommender/internal/domain"
)

// PrepareRecord shapes a clean CSV row into a storable record. The movie's
// overview becomes the embedded contents; everything else filter predicates
// may touch lands in metadata. dateField names the metadata key holding the
// release timestamp and must match the collection configuration.
func PrepareRecord(row *MovieRow, dateField string) domain.Record {
	return domain.Record{
		ID:       row.ID,
		Title:    row.Title,
		Contents: row.Overview,
		Metadata: map[string]any{
			"title":                row.Title,
			"movie_id":             row.ID,
			"genres":               row.Genres,
			"keywords":             row.Keywords,
			"original_language":    row.OriginalLanguage,
			"popularity":           row.Popularity,
			"poster_path":          row.PosterPath,
			"production_companies": row.ProductionCompanies,
			"production_countries": row.ProductionCountries,
			dateField:              row.ReleaseDate.UTC().Format(time.RFC3339),
		},
	}
}
