package devices

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRepositoryListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"code", "name", "model", "location", "created_at", "updated_at"}).
		AddRow("ER-4012", "Line 1 analyzer", "S21", "Mill A", now, now).
		AddRow("ER-5200", "Line 2 analyzer", nil, nil, now, now)
	mock.ExpectQuery("SELECT d.code, d.name, d.model, d.location").
		WithArgs("user-1").
		WillReturnRows(rows)

	repo := NewRepository(db)
	list, err := repo.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(list))
	}
	if list[0].Code != "ER-4012" || list[0].Model != "S21" {
		t.Fatalf("unexpected first device: %+v", list[0])
	}
	if list[1].Model != "" {
		t.Fatalf("expected empty model for null column, got %q", list[1].Model)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT code, name, model, location").
		WithArgs("ER-9999").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "model", "location", "created_at", "updated_at"}))

	repo := NewRepository(db)
	device, err := repo.Get(context.Background(), "ER-9999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if device != nil {
		t.Fatalf("expected nil for missing device, got %+v", device)
	}
}

func TestRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM device_access").
		WithArgs("ER-4012").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM devices").
		WithArgs("ER-4012").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	deleted, err := repo.Delete(context.Background(), "ER-4012")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deleted=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepositoryDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM device_access").
		WithArgs("ER-9999").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM devices").
		WithArgs("ER-9999").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db)
	deleted, err := repo.Delete(context.Background(), "ER-9999")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatal("expected deleted=false for missing device")
	}
}
