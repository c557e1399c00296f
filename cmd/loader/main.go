// TMDB CSV ingest pipeline for the movie search service.
// Streams the dataset, drops rows failing the quality rules, embeds
// overviews, and batch-upserts into Postgres/pgvector.
//
// Usage:
//
//	loader -csv /data/tmdb.csv -create-schema -workers 4
//
// Connection and embedding settings come from the same YAML config (plus
// .env) the API server uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/config"
	"github.com/johnmartinello/recommender/internal/db/postgres"
	"github.com/johnmartinello/recommender/internal/ingest"
	logpkg "github.com/johnmartinello/recommender/internal/logger"
	"github.com/johnmartinello/recommender/internal/metrics"
	openaiEmb "github.com/johnmartinello/recommender/internal/transport/openai"
	recorduc "github.com/johnmartinello/recommender/internal/usecase/record"
)

type flags struct {
	csvPath      string
	createSchema bool
	createIndex  bool
	maxRows      int
	workers      int
	batchSize    int
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.csvPath, "csv", "", "path to the TMDB CSV export (required)")
	flag.BoolVar(&f.createSchema, "create-schema", false, "create the extension and table before loading")
	flag.BoolVar(&f.createIndex, "create-index", false, "create the ivfflat index after loading")
	flag.IntVar(&f.maxRows, "max-rows", 0, "max clean rows to load (0=unlimited)")
	flag.IntVar(&f.workers, "workers", 4, "number of parallel upsert workers")
	flag.IntVar(&f.batchSize, "batch-size", 100, "records per batch upsert")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if f.csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	_ = godotenv.Load()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, f, cfg, logger); err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}
}

func run(ctx context.Context, f flags, cfg config.Config, logger *zap.Logger) error {
	store, err := postgres.NewStore(postgres.Config{
		URL:          cfg.Database.URL,
		Table:        cfg.Database.TableName,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		IVFFlatLists: cfg.Database.IVFFlatLists,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	if f.createSchema {
		if err := store.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		logger.Info("Schema created", zap.String("table", cfg.Database.TableName))
	}

	metrics.RegisterEmbeddingMetrics()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		User:       cfg.Embedding.User,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	records := recorduc.New(store, embedder, cfg.Embedding.Dimensions, logger)
	ingester := ingest.NewIngester(records, cfg.Database.DateField, f.workers, f.batchSize, logger)

	file, err := os.Open(f.csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader, err := ingest.NewReader(file)
	if err != nil {
		return fmt.Errorf("open reader: %w", err)
	}

	logger.Info("Starting ingestion",
		zap.String("csv", f.csvPath),
		zap.Int("workers", f.workers),
		zap.Int("batch_size", f.batchSize),
	)

	res, err := ingester.Run(ctx, reader, f.maxRows)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	logger.Info("Ingestion finished",
		zap.Int64("upserted", res.Upserted),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("dropped", res.Dropped),
		zap.Duration("duration", res.Duration),
	)

	if f.createIndex {
		if err := store.CreateIndex(ctx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		logger.Info("Vector index created")
	}

	return nil
}
