package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
// The API client is built lazily on the first Embed call and reused for the
// embedder's lifetime; the once guard keeps concurrent first calls from
// racing the initialization.
type Embedder struct {
	cfg Config

	initOnce sync.Once
	client   *openai.Client
	model    openai.EmbeddingModel

	logger *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider. No connection
// is made until the first Embed call.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{cfg: *cfg, logger: cfg.Logger}
}

func (e *Embedder) init() {
	clientCfg := openai.DefaultConfig(e.cfg.APIKey)
	if e.cfg.BaseURL != "" {
		clientCfg.BaseURL = e.cfg.BaseURL
	}
	e.client = openai.NewClientWithConfig(clientCfg)
	e.model = openai.EmbeddingModel(e.cfg.Model)

	if e.logger != nil {
		e.logger.Info("Embedding client initialized",
			zap.String("provider", e.cfg.Provider),
			zap.String("model", e.cfg.Model),
			zap.Int("dimensions", e.cfg.Dimensions),
		)
	}
}

// Embed implements domain.Embedder. Newlines are collapsed to spaces before
// encoding so the same text always produces the same vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	e.initOnce.Do(e.init)

	req := openai.EmbeddingRequest{
		Input:          []string{normalizeText(text)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
	}
	if e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.cfg.Provider, e.cfg.Model).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	e.initOnce.Do(e.init)

	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// normalizeText collapses newlines to spaces before encoding.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	return strings.ReplaceAll(text, "\n", " ")
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProvider; retries, if any,
// belong to the caller.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
