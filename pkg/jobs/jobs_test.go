package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/logger"
	"github.com/jordanlanch/commercebi/pkg/pipeline"
)

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) TryRun(context.Context) (*pipeline.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Report{RunID: "run-1", Status: database.RunStatusSuccess}, nil
}

type fakeRuns struct {
	runs []database.Run
	err  error
}

func (f fakeRuns) ListRuns(context.Context, int) ([]database.Run, error) {
	return f.runs, f.err
}

func TestCronManager(t *testing.T) {
	t.Run("Success - registers pipeline and freshness jobs", func(t *testing.T) {
		cm := NewCronManager(&fakeRunner{}, NewDataMonitor(fakeRuns{}, logger.Discard()), logger.Discard())
		require.NoError(t, cm.SetupJobs(DefaultSchedule("0 2 * * *")))
		assert.Equal(t, 2, cm.Entries())
	})

	t.Run("Invalid spec is rejected", func(t *testing.T) {
		cm := NewCronManager(&fakeRunner{}, nil, logger.Discard())
		assert.Error(t, cm.SetupJobs(DefaultSchedule("not a cron spec")))
	})

	t.Run("Busy pipeline is skipped", func(t *testing.T) {
		var buf bytes.Buffer
		runner := &fakeRunner{err: pipeline.ErrAlreadyRunning}
		cm := NewCronManager(runner, nil, logger.NewWithWriter(&buf, "info"))

		cm.runPipeline()
		assert.Equal(t, 1, runner.calls)
		assert.Contains(t, buf.String(), "run in progress")
	})

	t.Run("Success - scheduled run logs the report", func(t *testing.T) {
		var buf bytes.Buffer
		cm := NewCronManager(&fakeRunner{}, nil, logger.NewWithWriter(&buf, "info"))

		cm.runPipeline()
		assert.Contains(t, buf.String(), "run-1")
	})
}

func TestDataMonitorFreshness(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		runs       []database.Run
		wantStale  bool
		wantRunID  string
		wantFailed int
	}{
		{
			name:      "No runs is stale",
			wantStale: true,
		},
		{
			name: "Recent partial run is fresh",
			runs: []database.Run{
				{ID: "b", Status: database.RunStatusPartial, FinishedAt: now.Add(-2 * time.Hour)},
			},
			wantRunID: "b",
		},
		{
			name: "Failures after an old success",
			runs: []database.Run{
				{ID: "c", Status: database.RunStatusFailed, FinishedAt: now.Add(-time.Hour)},
				{ID: "b", Status: database.RunStatusFailed, FinishedAt: now.Add(-25 * time.Hour)},
				{ID: "a", Status: database.RunStatusSuccess, FinishedAt: now.Add(-72 * time.Hour)},
			},
			wantStale:  true,
			wantRunID:  "a",
			wantFailed: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDataMonitor(fakeRuns{runs: tt.runs}, logger.Discard())
			m.now = func() time.Time { return now }

			f, err := m.Freshness(context.Background(), 36*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStale, f.Stale)
			assert.Equal(t, tt.wantRunID, f.LastRunID)
			assert.Equal(t, tt.wantFailed, f.RecentFailed)
		})
	}

	t.Run("List failure is returned", func(t *testing.T) {
		m := NewDataMonitor(fakeRuns{err: errors.New("db down")}, logger.Discard())
		_, err := m.Freshness(context.Background(), time.Hour)
		assert.Error(t, err)
	})

	t.Run("Stale data logs a warning", func(t *testing.T) {
		var buf bytes.Buffer
		m := NewDataMonitor(fakeRuns{}, logger.NewWithWriter(&buf, "info"))
		m.CheckFreshness(context.Background(), time.Hour)
		assert.Contains(t, buf.String(), "no successful pipeline run recorded")
	})
}
