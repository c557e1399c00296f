package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/johnmartinello/recommender/internal/db"
	"github.com/johnmartinello/recommender/internal/domain"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &Store{conn: conn, table: "movies", dims: 4}, mock
}

func testRecord(id string) domain.Record {
	return domain.Record{
		ID:        id,
		Title:     "WarGames",
		Metadata:  map[string]any{"genres": "Thriller"},
		Contents:  "A kid accidentally accesses the pentagon servers",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestUpsert_InsertOrReplace(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE"))
	prep.ExpectExec().
		WithArgs("m1", "WarGames", []byte(`{"genres":"Thriller"}`),
			"A kid accidentally accesses the pentagon servers",
			pgvector.NewVector([]float32{0.1, 0.2, 0.3, 0.4})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.Upsert(context.Background(), []domain.Record{testRecord("m1")})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 1 {
		t.Errorf("upserted = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsert_EmptyBatch(t *testing.T) {
	store, mock := newTestStore(t)

	n, err := store.Upsert(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("Upsert(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteByIDs(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"m1", "m2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.DeleteByIDs(context.Background(), []string{"m1", "m2"})
	if err != nil {
		t.Fatalf("DeleteByIDs: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}

func TestDeleteAll(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies")).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := store.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 42 {
		t.Errorf("deleted = %d, want 42", n)
	}
}

func TestQuery_ScansRowsInStoreOrder(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "title", "metadata", "contents", "similarity"}).
		AddRow("m1", "WarGames", []byte(`{"genres":"Thriller"}`), "contents one", 0.93).
		AddRow("m2", "Hackers", []byte(`{"genres":"Crime"}`), "contents two", 0.87)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, metadata, contents")).
		WillReturnRows(rows)

	got, err := store.Query(context.Background(), &db.SearchQuery{
		SQL:    "SELECT id, title, metadata, contents, 1 - (embedding <=> $1) AS similarity FROM movies WHERE TRUE ORDER BY embedding <=> $2 LIMIT $3",
		Params: []any{pgvector.NewVector([]float32{0.1}), pgvector.NewVector([]float32{0.1}), 2},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("store order not preserved: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Error("similarity not non-increasing")
	}
	if got[0].Metadata["genres"] != "Thriller" {
		t.Errorf("metadata not decoded: %v", got[0].Metadata)
	}
}

func TestQuery_TimeoutMapsToStoreTimeout(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	_, err := store.Query(context.Background(), &db.SearchQuery{SQL: "SELECT 1"})
	if !errors.Is(err, domain.ErrStoreTimeout) {
		t.Fatalf("expected ErrStoreTimeout, got %v", err)
	}

	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpQuery {
		t.Errorf("expected db.Error with op %s, got %v", db.OpQuery, err)
	}
}

func TestQuery_ExecErrorMapsToStoreExec(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))

	_, err := store.Query(context.Background(), &db.SearchQuery{SQL: "SELECT 1"})
	if !errors.Is(err, domain.ErrStoreExec) {
		t.Fatalf("expected ErrStoreExec, got %v", err)
	}
	if got := err.Error(); !regexp.MustCompile("relation does not exist").MatchString(got) {
		t.Errorf("underlying message not preserved: %q", got)
	}
}

func TestQueryCanceledCodeMapsToTimeout(t *testing.T) {
	err := wrap(db.OpQuery, &pq.Error{Code: queryCanceled, Message: "canceling statement due to statement timeout"})
	if !errors.Is(err, domain.ErrStoreTimeout) {
		t.Fatalf("expected ErrStoreTimeout, got %v", err)
	}
}
