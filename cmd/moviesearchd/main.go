package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cacheRedis "github.com/johnmartinello/recommender/internal/cache/redis"
	"github.com/johnmartinello/recommender/internal/config"
	"github.com/johnmartinello/recommender/internal/db"
	"github.com/johnmartinello/recommender/internal/db/postgres"
	"github.com/johnmartinello/recommender/internal/domain"
	logpkg "github.com/johnmartinello/recommender/internal/logger"
	"github.com/johnmartinello/recommender/internal/metrics"
	"github.com/johnmartinello/recommender/internal/repository/embcache"
	chiTransport "github.com/johnmartinello/recommender/internal/transport/chi"
	openaiEmb "github.com/johnmartinello/recommender/internal/transport/openai"
	healthuc "github.com/johnmartinello/recommender/internal/usecase/health"
	recorduc "github.com/johnmartinello/recommender/internal/usecase/record"
	searchuc "github.com/johnmartinello/recommender/internal/usecase/search"
	"github.com/johnmartinello/recommender/internal/version"
)

func main() {
	// .env is optional, real env vars win
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting movie search API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("table", cfg.Database.TableName),
	)

	store, err := postgres.NewStore(postgres.Config{
		URL:          cfg.Database.URL,
		Table:        cfg.Database.TableName,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		IVFFlatLists: cfg.Database.IVFFlatLists,
	})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Build embedder chain — composition root
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		User:       cfg.Embedding.User,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	var cachePinger healthuc.CachePinger
	if len(cfg.Cache.Addrs) > 0 {
		kv, err := cacheRedis.NewStore(cacheRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer kv.Close()

		embedder = embcache.New(base, kv, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.Cache.TTLSec) * time.Second)
		cachePinger = kv
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	builder := db.NewQueryBuilder(cfg.Database.TableName, cfg.Database.DateField)

	searchSvc := searchuc.New(store, builder, embedder)
	recordSvc := recorduc.New(store, embedder, cfg.Embedding.Dimensions, logger)
	healthSvc := healthuc.New(store, base, cachePinger)

	server := chiTransport.NewServer(searchSvc, recordSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
