package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/domain/search/filter"
	"github.com/johnmartinello/recommender/internal/domain/search/request"
	"github.com/johnmartinello/recommender/internal/domain/search/result"
	"github.com/johnmartinello/recommender/internal/logger"
	"github.com/johnmartinello/recommender/internal/metrics"
	healthuc "github.com/johnmartinello/recommender/internal/usecase/health"
	recorduc "github.com/johnmartinello/recommender/internal/usecase/record"
	searchuc "github.com/johnmartinello/recommender/internal/usecase/search"
)

const maxBatchSize = 500

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search and record services over HTTP.
type Server struct {
	search        *searchuc.Service
	records       *recorduc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	records *recorduc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		records: records,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, "invalid_filter"),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, "dimension_mismatch"),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrStoreTimeout, http.StatusGatewayTimeout, "store_timeout"),
		sentinelHandler(domain.ErrStoreExec, http.StatusInternalServerError, "store_error"),
	}
	return s
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Put("/records", s.handleUpsertRecords)
		r.Delete("/records", s.handleDeleteRecords)
	})

	return r
}

// requestLogger stores a request-scoped logger carrying the request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), l)))
	})
}

// timeRangeParam accepts either a bare year pair "YYYY-YYYY" or an
// object with explicit start/end dates.
type timeRangeParam struct {
	years string
	start types.Date
	end   types.Date
}

func (p *timeRangeParam) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.years = s
		return nil
	}

	var obj struct {
		Start types.Date `json:"start"`
		End   types.Date `json:"end"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("time_range must be a \"YYYY-YYYY\" string or a {start, end} object")
	}
	p.start = obj.Start
	p.end = obj.End
	return nil
}

// value returns the representation the filter parser expects.
func (p *timeRangeParam) value() any {
	if p.years != "" {
		return p.years
	}
	return filter.TimeRange{Start: p.start.Time.UTC(), End: p.end.Time.UTC()}
}

type searchFilters struct {
	Genres           string          `json:"genres,omitempty"`
	Keywords         string          `json:"keywords,omitempty"`
	OriginalLanguage string          `json:"original_language,omitempty"`
	TimeRange        *timeRangeParam `json:"time_range,omitempty"`
}

func (f *searchFilters) toMap() map[string]any {
	if f == nil {
		return nil
	}
	m := make(map[string]any)
	if f.Genres != "" {
		m[filter.KeyGenres] = f.Genres
	}
	if f.Keywords != "" {
		m[filter.KeyKeywords] = f.Keywords
	}
	if f.OriginalLanguage != "" {
		m[filter.KeyLanguage] = f.OriginalLanguage
	}
	if f.TimeRange != nil {
		m[filter.KeyTimeRange] = f.TimeRange.value()
	}
	return m
}

type searchRequest struct {
	Query   string         `json:"query"`
	Filters *searchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

type searchResultItem struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Metadata   map[string]any `json:"metadata"`
	Contents   string         `json:"contents"`
	Similarity float64        `json:"similarity"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	filters, err := filter.Parse(req.Filters.toMap())
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	searchReq, err := request.New(req.Query, filters, req.Limit)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	results, err := s.search.Search(r.Context(), &searchReq)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = resultToItem(&results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

type recordPayload struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Contents  string         `json:"contents"`
	Embedding []float32      `json:"embedding,omitempty"`
}

type upsertRequest struct {
	Records []recordPayload `json:"records"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// handleUpsertRecords handles PUT /api/v1/records.
func (s *Server) handleUpsertRecords(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if len(req.Records) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("records count must not exceed %d", maxBatchSize))
		return
	}

	records := make([]domain.Record, len(req.Records))
	for i, p := range req.Records {
		records[i] = domain.Record{
			ID:        p.ID,
			Title:     p.Title,
			Metadata:  p.Metadata,
			Contents:  p.Contents,
			Embedding: p.Embedding,
		}
	}

	res, err := s.records.Upsert(r.Context(), records)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{Upserted: res.Upserted, Skipped: res.Skipped})
}

type deleteRequest struct {
	IDs            []string          `json:"ids,omitempty"`
	MetadataFilter map[string]string `json:"metadata_filter,omitempty"`
	DeleteAll      bool              `json:"delete_all,omitempty"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// handleDeleteRecords handles DELETE /api/v1/records.
func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	n, err := s.records.Delete(r.Context(), recorduc.DeleteCriteria{
		IDs:    req.IDs,
		Filter: req.MetadataFilter,
		All:    req.DeleteAll,
	})
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func resultToItem(r *result.Result) searchResultItem {
	return searchResultItem{
		ID:         r.ID(),
		Title:      r.Title(),
		Metadata:   r.Metadata(),
		Contents:   r.Contents(),
		Similarity: r.Similarity(),
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidFilter,
		domain.ErrInvalidRequest,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrStoreTimeout,
		domain.ErrStoreExec,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(r *http.Request, w http.ResponseWriter, err error) {
	l := logger.FromContext(r.Context())
	l.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	l.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
