package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the orders table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id               VARCHAR(36) PRIMARY KEY,
			order_number     VARCHAR(64) NOT NULL,
			sales_channel_id VARCHAR(36) NOT NULL DEFAULT '',
			amount_total     NUMERIC(20,2) NOT NULL DEFAULT 0,
			currency_iso     VARCHAR(3) NOT NULL DEFAULT 'USD',
			customer         JSONB NOT NULL DEFAULT '{}',
			billing          JSONB NOT NULL DEFAULT '{}',
			custom_fields    JSONB NOT NULL DEFAULT '{}',
			placed_at        TIMESTAMPTZ,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_risk ON orders((custom_fields ? 'fraud_risk'), (custom_fields ? 'ip_risk_score'));
	`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, order_number, sales_channel_id, amount_total, currency_iso,
		       customer, billing, custom_fields, placed_at, created_at
		FROM orders WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (p *PostgresStore) Create(ctx context.Context, o *Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return fmt.Errorf("marshal billing: %w", err)
	}
	fields := o.CustomFields
	if fields == nil {
		fields = map[string]any{}
	}
	customFields, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal custom fields: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, sales_channel_id, amount_total, currency_iso,
			customer, billing, custom_fields, placed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, o.ID, o.OrderNumber, o.SalesChannelID, o.AmountTotal, o.CurrencyISO,
		customer, billing, customFields, o.PlacedAt, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateCustomFields merges fields into the order's custom_fields JSONB.
// The || operator upserts the given keys and leaves the rest alone.
func (p *PostgresStore) UpdateCustomFields(ctx context.Context, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE orders SET custom_fields = custom_fields || $1::jsonb WHERE id = $2
	`, patch, id)
	if err != nil {
		return fmt.Errorf("update custom fields: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// List returns orders newest first. A cursor narrows results to orders
// strictly older than the cursor position.
func (p *PostgresStore) List(ctx context.Context, limit int, opts ...ListOption) ([]*Order, error) {
	o := applyListOpts(opts)

	query := `
		SELECT id, order_number, sales_channel_id, amount_total, currency_iso,
		       customer, billing, custom_fields, placed_at, created_at
		FROM orders
	`
	args := []any{}
	if o.cursor != nil {
		query += ` WHERE (created_at, id) < ($2, $3)`
		args = append(args, o.cursor.CreatedAt, o.cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := p.db.QueryContext(ctx, query, append([]any{limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, ord)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListScored(ctx context.Context, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, order_number, sales_channel_id, amount_total, currency_iso,
		       customer, billing, custom_fields, placed_at, created_at
		FROM orders
		WHERE custom_fields ? 'fraud_risk' OR custom_fields ? 'ip_risk_score'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scored orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var customer, billing, customFields []byte
	var placedAt sql.NullTime

	if err := row.Scan(&o.ID, &o.OrderNumber, &o.SalesChannelID, &o.AmountTotal, &o.CurrencyISO,
		&customer, &billing, &customFields, &placedAt, &o.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, fmt.Errorf("unmarshal billing: %w", err)
	}
	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &o.CustomFields); err != nil {
			return nil, fmt.Errorf("unmarshal custom fields: %w", err)
		}
	}
	if placedAt.Valid {
		o.PlacedAt = placedAt.Time
	}
	return o, nil
}
