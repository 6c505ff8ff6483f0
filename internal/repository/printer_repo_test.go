package repository_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"pulseprint"
	"pulseprint/internal/repository"
)

// sqlmockArgumentFunc adapts a predicate to sqlmock's Argument interface.
type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool { return f(v) }

// isUTCRecent matches a time.Time in UTC within a few seconds of now.
var isUTCRecent = sqlmockArgumentFunc(func(v driver.Value) bool {
	tm, ok := v.(time.Time)
	if !ok {
		return false
	}
	if tm.Location() != time.UTC {
		return false
	}
	now := time.Now().UTC()
	return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
})

func TestPrinterSQLite_Save_StampsTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewPrinterSQLite(db)

	cfg := pulseprint.PrinterConfig{
		ID:         "p1",
		Name:       "Workshop X1C",
		Model:      "X1 Carbon",
		IP:         "192.168.1.42",
		AccessCode: "12345678",
		Serial:     "01S00C123456789",
		// CreatedAt is zero: Save must stamp it.
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO printers")).
		WithArgs(
			cfg.ID,
			cfg.Name,
			cfg.Model,
			cfg.IP,
			cfg.AccessCode,
			cfg.Serial,
			isUTCRecent, // created_at
			isUTCRecent, // updated_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrinterSQLite_Save_PreservesExistingCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewPrinterSQLite(db)

	created := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cfg := pulseprint.PrinterConfig{
		ID:         "p1",
		Name:       "Workshop X1C",
		Model:      "X1 Carbon",
		IP:         "192.168.1.42",
		AccessCode: "12345678",
		Serial:     "01S00C123456789",
		CreatedAt:  created,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO printers")).
		WithArgs(cfg.ID, cfg.Name, cfg.Model, cfg.IP, cfg.AccessCode, cfg.Serial, created, isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrinterSQLite_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewPrinterSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM printers WHERE id=?")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrinterSQLite_GetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewPrinterSQLite(db)

	t0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	t1 := time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "model", "ip", "access_code", "serial", "created_at", "updated_at"}).
		AddRow("p1", "Workshop X1C", "X1 Carbon", "192.168.1.42", "12345678", "01S00C123456789", t0, t0).
		AddRow("p2", "Office A1", "A1 mini", "192.168.1.43", "87654321", "01P00A987654321", t1, t1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, model, ip, access_code, serial, created_at, updated_at")).
		WillReturnRows(rows)

	got, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 printers, got %d", len(got))
	}
	if got[0].ID != "p1" || got[0].Serial != "01S00C123456789" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if !got[1].CreatedAt.Equal(t1) {
		t.Fatalf("created_at not preserved: %v", got[1].CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
