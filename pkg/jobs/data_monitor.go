package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/logger"
)

// RunLister lists recorded pipeline runs, newest first
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]database.Run, error)
}

// Freshness describes how current the loaded data is
type Freshness struct {
	LastRunID     string        `json:"last_run_id,omitempty"`
	LastSuccessAt *time.Time    `json:"last_success_at,omitempty"`
	Age           time.Duration `json:"age"`
	Stale         bool          `json:"stale"`
	RecentFailed  int           `json:"recent_failed"`
}

// DataMonitor checks that pipeline runs keep the store fresh
type DataMonitor struct {
	runs   RunLister
	logger logger.Logger
	now    func() time.Time
}

// NewDataMonitor creates a new data monitor instance
func NewDataMonitor(runs RunLister, log logger.Logger) *DataMonitor {
	return &DataMonitor{runs: runs, logger: log.With("component", "data_monitor"), now: time.Now}
}

// Freshness inspects the recent runs. Partial runs count as successful loads.
func (m *DataMonitor) Freshness(ctx context.Context, maxAge time.Duration) (*Freshness, error) {
	runs, err := m.runs.ListRuns(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}

	f := &Freshness{Stale: true}
	for _, r := range runs {
		if r.Status == database.RunStatusFailed {
			if f.LastSuccessAt == nil {
				f.RecentFailed++
			}
			continue
		}
		if f.LastSuccessAt == nil {
			finished := r.FinishedAt
			f.LastRunID = r.ID
			f.LastSuccessAt = &finished
			f.Age = m.now().Sub(finished)
			f.Stale = f.Age > maxAge
		}
	}
	return f, nil
}

// CheckFreshness logs a warning when the data is stale
func (m *DataMonitor) CheckFreshness(ctx context.Context, maxAge time.Duration) {
	f, err := m.Freshness(ctx, maxAge)
	if err != nil {
		m.logger.Error("freshness check failed", "error", err)
		return
	}

	switch {
	case f.LastSuccessAt == nil:
		m.logger.Warn("no successful pipeline run recorded", "failed_runs", f.RecentFailed)
	case f.Stale:
		m.logger.Warn("data is stale",
			"last_run_id", f.LastRunID,
			"age", f.Age.String(),
			"max_age", maxAge.String(),
			"failed_since", f.RecentFailed)
	default:
		m.logger.Info("data is fresh", "last_run_id", f.LastRunID, "age", f.Age.String())
	}
}
