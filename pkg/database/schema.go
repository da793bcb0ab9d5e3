package database

import (
	"context"
	"fmt"
)

// Table names
const (
	TableOrders         = "orders"
	TableCustomers      = "customers"
	TableProducts       = "products"
	TableCampaigns      = "campaigns"
	TableSalesCampaigns = "sales_campaigns"
	TablePipelineRuns   = "pipeline_runs"
)

// schema is kept to types both SQLite and Postgres accept
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id    TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		product_id  TEXT NOT NULL,
		quantity    INTEGER NOT NULL,
		total_price DOUBLE PRECISION NOT NULL,
		order_date  DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_order_date ON orders (order_date)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id)`,
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id     TEXT PRIMARY KEY,
		name            TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		segment         TEXT NOT NULL,
		signup_date     DATE NOT NULL,
		last_order_date DATE,
		clv             DOUBLE PRECISION NOT NULL DEFAULT 0,
		num_orders      INTEGER NOT NULL DEFAULT 0,
		age             INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id   TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT '',
		price        DOUBLE PRECISION NOT NULL,
		stock        INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		campaign_id   TEXT PRIMARY KEY,
		campaign_name TEXT NOT NULL,
		spend         DOUBLE PRECISION NOT NULL,
		clicks        INTEGER NOT NULL DEFAULT 0,
		conversions   INTEGER NOT NULL,
		impressions   INTEGER NOT NULL,
		start_date    DATE NOT NULL,
		end_date      DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales_campaigns (
		order_id      TEXT NOT NULL,
		campaign_name TEXT NOT NULL,
		PRIMARY KEY (order_id, campaign_name)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id                  TEXT PRIMARY KEY,
		started_at          TIMESTAMP NOT NULL,
		finished_at         TIMESTAMP NOT NULL,
		status              TEXT NOT NULL,
		orders_loaded       INTEGER NOT NULL DEFAULT 0,
		customers_loaded    INTEGER NOT NULL DEFAULT 0,
		products_loaded     INTEGER NOT NULL DEFAULT 0,
		campaigns_loaded    INTEGER NOT NULL DEFAULT 0,
		attribution_records INTEGER NOT NULL DEFAULT 0,
		warnings            TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the tables when they do not exist
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
