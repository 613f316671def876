package storage

import (
	"context"
	"fmt"
	"time"
)

// GetConfigValues returns every stored configuration value
func (r *Repository) GetConfigValues(ctx context.Context) (map[string]float64, error) {
	rows, err := r.query(ctx, `SELECT key, value FROM bot_config`)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

// UpsertConfigValue creates or updates a configuration value
func (r *Repository) UpsertConfigValue(ctx context.Context, key string, value float64, description string) error {
	_, err := r.exec(ctx,
		`INSERT INTO bot_config (key, value, description, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, description = excluded.description, updated_at = excluded.updated_at`,
		key, value, description, time.Now().UTC(),
	)
	return err
}
