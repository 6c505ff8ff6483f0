package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrPrefNotFound is returned by Get for a key that was never set.
var ErrPrefNotFound = errors.New("preference not found")

type PrefsSQLite struct {
	db *sql.DB
}

func NewPrefsSQLite(db *sql.DB) *PrefsSQLite {
	return &PrefsSQLite{db: db}
}

const (
	upsertPrefSQL = `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	selectPrefSQL  = `SELECT value FROM preferences WHERE key=?`
	selectPrefsSQL = `SELECT key, value FROM preferences ORDER BY key ASC`
)

func (r *PrefsSQLite) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, upsertPrefSQL, key, value, time.Now().UTC())
	return err
}

func (r *PrefsSQLite) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, selectPrefSQL, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPrefNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *PrefsSQLite) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, selectPrefsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
