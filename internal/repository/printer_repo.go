package repository

import (
	"context"
	"database/sql"
	"time"

	"pulseprint"
)

type PrinterSQLite struct {
	db *sql.DB
}

func NewPrinterSQLite(db *sql.DB) *PrinterSQLite {
	return &PrinterSQLite{db: db}
}

const (
	upsertPrinterSQL = `
		INSERT INTO printers (id, name, model, ip, access_code, serial, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			model=excluded.model,
			ip=excluded.ip,
			access_code=excluded.access_code,
			serial=excluded.serial,
			updated_at=excluded.updated_at
	`

	deletePrinterSQL = `DELETE FROM printers WHERE id=?`

	selectPrintersSQL = `
		SELECT id, name, model, ip, access_code, serial, created_at, updated_at
		FROM printers ORDER BY created_at ASC
	`
)

// Save upserts one printer definition. A zero CreatedAt is stamped now;
// UpdatedAt is always stamped now, both as UTC.
func (r *PrinterSQLite) Save(ctx context.Context, cfg pulseprint.PrinterConfig) error {
	now := time.Now().UTC()
	created := cfg.CreatedAt
	if created.IsZero() {
		created = now
	} else {
		created = created.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertPrinterSQL,
		cfg.ID,
		cfg.Name,
		cfg.Model,
		cfg.IP,
		cfg.AccessCode,
		cfg.Serial,
		created,
		now,
	)
	return err
}

// Delete removes one printer definition. Deleting an unknown id is not an
// error.
func (r *PrinterSQLite) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, deletePrinterSQL, id)
	return err
}

// GetAll returns every persisted printer definition in registration order.
func (r *PrinterSQLite) GetAll(ctx context.Context) ([]pulseprint.PrinterConfig, error) {
	rows, err := r.db.QueryContext(ctx, selectPrintersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pulseprint.PrinterConfig, 0, 8)
	for rows.Next() {
		var cfg pulseprint.PrinterConfig
		if err := rows.Scan(
			&cfg.ID,
			&cfg.Name,
			&cfg.Model,
			&cfg.IP,
			&cfg.AccessCode,
			&cfg.Serial,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		cfg.CreatedAt = cfg.CreatedAt.UTC()
		cfg.UpdatedAt = cfg.UpdatedAt.UTC()
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
