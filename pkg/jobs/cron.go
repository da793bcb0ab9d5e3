package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/commercebi/pkg/logger"
	"github.com/jordanlanch/commercebi/pkg/pipeline"
)

// PipelineRunner triggers a pipeline run without queueing behind an in-flight one
type PipelineRunner interface {
	TryRun(ctx context.Context) (*pipeline.Report, error)
}

// Schedule configures the scheduled jobs
type Schedule struct {
	// Pipeline is the cron spec of the batch refresh
	Pipeline string
	// Freshness is the cron spec of the staleness check
	Freshness string
	// MaxAge is how old the last successful run may get before a warning
	MaxAge time.Duration
}

// DefaultSchedule runs the pipeline nightly and checks freshness every morning
func DefaultSchedule(pipelineSpec string) Schedule {
	return Schedule{
		Pipeline:  pipelineSpec,
		Freshness: "0 6 * * *",
		MaxAge:    36 * time.Hour,
	}
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	runner  PipelineRunner
	monitor *DataMonitor
	logger  logger.Logger
	timeout time.Duration
}

// NewCronManager creates a new cron manager
func NewCronManager(runner PipelineRunner, monitor *DataMonitor, log logger.Logger) *CronManager {
	return &CronManager{
		cron:    cron.New(),
		runner:  runner,
		monitor: monitor,
		logger:  log.With("component", "cron"),
		timeout: 30 * time.Minute,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs(s Schedule) error {
	if _, err := cm.cron.AddFunc(s.Pipeline, cm.runPipeline); err != nil {
		return err
	}

	if cm.monitor != nil && s.Freshness != "" {
		_, err := cm.cron.AddFunc(s.Freshness, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			cm.monitor.CheckFreshness(ctx, s.MaxAge)
		})
		if err != nil {
			return err
		}
	}

	cm.logger.Info("cron jobs configured", "pipeline", s.Pipeline, "freshness", s.Freshness)
	return nil
}

func (cm *CronManager) runPipeline() {
	ctx, cancel := context.WithTimeout(context.Background(), cm.timeout)
	defer cancel()

	cm.logger.Info("running scheduled pipeline")
	report, err := cm.runner.TryRun(ctx)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		cm.logger.Warn("scheduled pipeline skipped: run in progress")
	case err != nil:
		cm.logger.Error("scheduled pipeline failed", "error", err)
	default:
		cm.logger.Info("scheduled pipeline completed",
			"run_id", report.RunID,
			"status", report.Status,
			"warnings", len(report.Warnings))
	}
}

// Entries returns the number of scheduled jobs
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (cm *CronManager) Stop() context.Context {
	cm.logger.Info("stopping cron scheduler")
	return cm.cron.Stop()
}
