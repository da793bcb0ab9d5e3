package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// Run is one row of the pipeline_runs ledger
type Run struct {
	ID                 string    `json:"id"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Status             string    `json:"status"`
	OrdersLoaded       int       `json:"orders_loaded"`
	CustomersLoaded    int       `json:"customers_loaded"`
	ProductsLoaded     int       `json:"products_loaded"`
	CampaignsLoaded    int       `json:"campaigns_loaded"`
	AttributionRecords int       `json:"attribution_records"`
	Warnings           []string  `json:"warnings"`
}

// NewRunID returns a fresh pipeline run identifier
func NewRunID() string {
	return uuid.NewString()
}

const warningSeparator = "\n"

// RecordRun stores a pipeline run, assigning an id when the run has none
func (c *Client) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	_, err := c.DB.ExecContext(ctx, c.Rebind(`
		INSERT INTO pipeline_runs (
			id, started_at, finished_at, status,
			orders_loaded, customers_loaded, products_loaded, campaigns_loaded,
			attribution_records, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Status,
		run.OrdersLoaded,
		run.CustomersLoaded,
		run.ProductsLoaded,
		run.CampaignsLoaded,
		run.AttributionRecords,
		strings.Join(run.Warnings, warningSeparator),
	)
	if err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent pipeline runs, newest first
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.DB.QueryContext(ctx, c.Rebind(`
		SELECT id, started_at, finished_at, status,
			orders_loaded, customers_loaded, products_loaded, campaigns_loaded,
			attribution_records, warnings
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var warnings string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.OrdersLoaded, &r.CustomersLoaded, &r.ProductsLoaded, &r.CampaignsLoaded,
			&r.AttributionRecords, &warnings); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		r.Warnings = []string{}
		if warnings != "" {
			r.Warnings = strings.Split(warnings, warningSeparator)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
