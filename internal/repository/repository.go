package repository

import (
	"context"
	"database/sql"
	"time"

	"pulseprint"
	"pulseprint/internal/repository/db"
)

// PrinterRepo persists printer definitions across restarts.
type PrinterRepo interface {
	Save(ctx context.Context, cfg pulseprint.PrinterConfig) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]pulseprint.PrinterConfig, error)
}

// EventRepo is the append-only fleet event log with filtering access.
type EventRepo interface {
	Append(ctx context.Context, e pulseprint.FleetEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]pulseprint.FleetEvent, error)
}

// PrefsRepo stores UI preferences as a key/value table.
type PrefsRepo interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	All(ctx context.Context) (map[string]string, error)
}

type Repository struct {
	Printers PrinterRepo
	Events   EventRepo
	Prefs    PrefsRepo
}

func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{
		Printers: NewPrinterSQLite(sqlDB),
		Events:   NewEventSQLite(sqlDB),
		Prefs:    NewPrefsSQLite(sqlDB),
	}
}

// InitDB opens the SQLite database and applies schema migrations.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
