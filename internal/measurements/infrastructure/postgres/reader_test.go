package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

func testCatalog(t *testing.T) *quality.Catalog {
	t.Helper()
	catalog, err := quality.NewCatalog([]quality.Metric{
		{ID: "whiteness", Label: "Whiteness"},
		{ID: "head_rice", Label: "Head Rice"},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return catalog
}

func TestReaderLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	reader, err := NewReader(db, testCatalog(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	capturedAt := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT captured_at, whiteness, head_rice").
		WithArgs("ER-4012").
		WillReturnRows(sqlmock.NewRows([]string{"captured_at", "whiteness", "head_rice"}).
			AddRow(capturedAt, 42.5, nil))

	m, err := reader.Latest(context.Background(), "ER-4012")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if m == nil {
		t.Fatal("expected a measurement")
	}
	if !m.CapturedAt.Equal(capturedAt) {
		t.Fatalf("expected %v, got %v", capturedAt, m.CapturedAt)
	}
	if v := m.Value("whiteness"); v == nil || *v != 42.5 {
		t.Fatalf("expected whiteness 42.5, got %v", v)
	}
	if v := m.Value("head_rice"); v != nil {
		t.Fatalf("expected sparse head_rice to be nil, got %v", *v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReaderLatestNoData(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	reader, err := NewReader(db, testCatalog(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	mock.ExpectQuery("SELECT captured_at, whiteness, head_rice").
		WithArgs("ER-0000").
		WillReturnRows(sqlmock.NewRows([]string{"captured_at", "whiteness", "head_rice"}))

	m, err := reader.Latest(context.Background(), "ER-0000")
	if err != nil {
		t.Fatalf("no data must not be an error, got %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil measurement, got %+v", m)
	}
}

func TestReaderLatestValueMissingMetric(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	reader, err := NewReader(db, testCatalog(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	capturedAt := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT captured_at, whiteness, head_rice").
		WithArgs("ER-4012").
		WillReturnRows(sqlmock.NewRows([]string{"captured_at", "whiteness", "head_rice"}).
			AddRow(capturedAt, nil, nil))

	value, at, err := reader.LatestValue(context.Background(), "ER-4012", "whiteness")
	if err != nil {
		t.Fatalf("latest value: %v", err)
	}
	if value != nil || at != nil {
		t.Fatalf("expected null form, got value=%v at=%v", value, at)
	}
}

func TestReaderHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	reader, err := NewReader(db, testCatalog(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT captured_at, whiteness, head_rice").
		WithArgs("ER-4012", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"captured_at", "whiteness", "head_rice"}).
			AddRow(from.Add(time.Hour), 41.0, 80.2).
			AddRow(from.Add(2*time.Hour), 42.0, 79.9))

	rows, err := reader.History(context.Background(), "ER-4012", from, to)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].CapturedAt.Before(rows[1].CapturedAt) {
		t.Fatal("expected rows ordered oldest first")
	}
}
