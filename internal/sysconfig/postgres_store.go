package sysconfig

import (
	"context"
	"database/sql"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed config store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the system_config table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS system_config (
			config_key  VARCHAR(255) NOT NULL,
			channel_id  VARCHAR(36)  NOT NULL DEFAULT '',
			value       TEXT         NOT NULL,
			updated_at  TIMESTAMPTZ  DEFAULT NOW(),
			PRIMARY KEY (config_key, channel_id)
		);
	`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, key, channelID string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `
		SELECT value FROM system_config
		WHERE config_key = $1 AND channel_id = $2
	`, key, channelID).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, channelID, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO system_config (config_key, channel_id, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (config_key, channel_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, channelID, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key, channelID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM system_config WHERE config_key = $1 AND channel_id = $2
	`, key, channelID)
	if err != nil {
		return fmt.Errorf("delete config %s: %w", key, err)
	}
	return nil
}
