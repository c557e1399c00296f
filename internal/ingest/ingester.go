package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/usecase/record"
)

// Upserter stores batches of prepared records.
type Upserter interface {
	Upsert(ctx context.Context, records []domain.Record) (record.UpsertResult, error)
}

// Ingester is a worker pool feeding CSV rows through the record service.
// Reader -> channel([]Record) -> N workers -> batched upsert.
type Ingester struct {
	records   Upserter
	dateField string
	workers   int
	batchSize int
	logger    *zap.Logger
}

// NewIngester creates an ingestion pipeline.
func NewIngester(records Upserter, dateField string, workers, batchSize int, logger *zap.Logger) *Ingester {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Ingester{
		records:   records,
		dateField: dateField,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Result summarizes one ingestion run.
type Result struct {
	Upserted int64
	Skipped  int64
	Dropped  int64
	Duration time.Duration
}

// Run streams the CSV through the worker pool. maxRows=0 means no limit.
func (ing *Ingester) Run(ctx context.Context, reader *Reader, maxRows int) (Result, error) {
	batches := make(chan []domain.Record, ing.workers*2)
	var wg sync.WaitGroup
	var upserted, skipped atomic.Int64

	start := time.Now()

	for i := 0; i < ing.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			ing.worker(ctx, workerID, batches, &upserted, &skipped)
		}(i)
	}

	var readerErr error
	go func() {
		defer close(batches)
		readerErr = ing.produce(ctx, reader, maxRows, batches)
	}()

	wg.Wait()

	result := Result{
		Upserted: upserted.Load(),
		Skipped:  skipped.Load(),
		Dropped:  int64(reader.Dropped()),
		Duration: time.Since(start),
	}
	if readerErr != nil {
		return result, fmt.Errorf("read rows: %w", readerErr)
	}
	return result, ctx.Err()
}

// produce reads CSV rows and forms batches.
func (ing *Ingester) produce(
	ctx context.Context, reader *Reader, maxRows int, out chan<- []domain.Record,
) error {
	batch := make([]domain.Record, 0, ing.batchSize)

	err := reader.ReadMovies(maxRows, func(row *MovieRow, _ int) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		batch = append(batch, PrepareRecord(row, ing.dateField))
		if len(batch) >= ing.batchSize {
			select {
			case out <- batch:
				batch = make([]domain.Record, 0, ing.batchSize)
			case <-ctx.Done():
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		select {
		case out <- batch:
		case <-ctx.Done():
		}
	}
	return nil
}

func (ing *Ingester) worker(
	ctx context.Context,
	workerID int,
	batches <-chan []domain.Record,
	upserted, skipped *atomic.Int64,
) {
	for batch := range batches {
		res, err := ing.records.Upsert(ctx, batch)
		if err != nil {
			// A failed batch is skipped wholesale; the run keeps going.
			ing.logger.Error("batch upsert failed",
				zap.Int("worker", workerID),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			skipped.Add(int64(len(batch)))
			continue
		}
		upserted.Add(int64(res.Upserted))
		skipped.Add(int64(res.Skipped))

		ing.logger.Debug("batch upserted",
			zap.Int("worker", workerID),
			zap.Int("upserted", res.Upserted),
			zap.Int("skipped", res.Skipped),
		)
	}
}
