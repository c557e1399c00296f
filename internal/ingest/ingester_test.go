package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/johnmartinello/recommender/internal/domain"
	"github.com/johnmartinello/recommender/internal/usecase/record"
)

type mockUpserter struct {
	mu      sync.Mutex
	batches [][]domain.Record
	err     error
}

func (m *mockUpserter) Upsert(_ context.Context, records []domain.Record) (record.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return record.UpsertResult{}, m.err
	}
	m.batches = append(m.batches, records)
	return record.UpsertResult{Upserted: len(records)}, nil
}

func (m *mockUpserter) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func buildCSV(n int) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 0; i < n; i++ {
		b.WriteString(goodRow(strconv.Itoa(1000 + i)))
	}
	return b.String()
}

func TestIngesterRunsAllRows(t *testing.T) {
	store := &mockUpserter{}
	ing := NewIngester(store, "release_date", 2, 3, zap.NewNop())

	r, err := NewReader(strings.NewReader(buildCSV(10)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	res, err := ing.Run(context.Background(), r, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Upserted != 10 {
		t.Errorf("upserted = %d, want 10", res.Upserted)
	}
	if store.total() != 10 {
		t.Errorf("stored %d records, want 10", store.total())
	}
	// 10 rows at batch size 3 -> batches of 3,3,3,1 in some worker order.
	if len(store.batches) != 4 {
		t.Errorf("got %d batches, want 4", len(store.batches))
	}
}

func TestIngesterCountsFailedBatches(t *testing.T) {
	store := &mockUpserter{err: errors.New("db down")}
	ing := NewIngester(store, "release_date", 1, 5, zap.NewNop())

	r, err := NewReader(strings.NewReader(buildCSV(5)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	res, err := ing.Run(context.Background(), r, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Upserted != 0 || res.Skipped != 5 {
		t.Errorf("result = %+v, want 0 upserted, 5 skipped", res)
	}
}

func TestIngesterHonorsMaxRows(t *testing.T) {
	store := &mockUpserter{}
	ing := NewIngester(store, "release_date", 1, 2, zap.NewNop())

	r, err := NewReader(strings.NewReader(buildCSV(10)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	res, err := ing.Run(context.Background(), r, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Upserted != 4 {
		t.Errorf("upserted = %d, want 4", res.Upserted)
	}
}

func TestIngesterStopsOnCancel(t *testing.T) {
	store := &mockUpserter{}
	ing := NewIngester(store, "release_date", 1, 1, zap.NewNop())

	r, err := NewReader(strings.NewReader(buildCSV(50)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ing.Run(ctx, r, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}
