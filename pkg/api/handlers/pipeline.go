package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/commercebi/pkg/api/errors"
	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/jobs"
	"github.com/jordanlanch/commercebi/pkg/pipeline"
)

// PipelineTrigger starts a pipeline run unless one is in flight
type PipelineTrigger interface {
	TryRun(ctx context.Context) (*pipeline.Report, error)
}

// PipelineHandler triggers pipeline runs and reports on past ones
type PipelineHandler struct {
	runner    PipelineTrigger
	runs      jobs.RunLister
	monitor   *jobs.DataMonitor
	maxAge    time.Duration
	timeout   time.Duration
	validator *validator.Validate
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(runner PipelineTrigger, runs jobs.RunLister, monitor *jobs.DataMonitor, maxAge time.Duration) *PipelineHandler {
	return &PipelineHandler{
		runner:    runner,
		runs:      runs,
		monitor:   monitor,
		maxAge:    maxAge,
		timeout:   10 * time.Minute,
		validator: validator.New(),
	}
}

// RunPipeline godoc
// @Summary Run the pipeline
// @Description Cleans raw extracts, reloads the store, rebuilds attribution and refreshes KPIs
// @Tags Pipeline
// @Produce json
// @Success 200 {object} pipeline.Report
// @Failure 409 {object} errors.ErrorResponse "Run already in progress"
// @Router /pipeline/run [post]
func (h *PipelineHandler) RunPipeline(c echo.Context) error {
	// Runs outlive the per-request store timeout
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report, err := h.runner.TryRun(ctx)
	if stderrors.Is(err, pipeline.ErrAlreadyRunning) {
		return errors.ConflictError(c, "Pipeline run already in progress")
	}
	if err != nil {
		return errors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ListRuns returns recent pipeline runs, newest first
func (h *PipelineHandler) ListRuns(c echo.Context) error {
	var q RunsQuery
	if err := bindQuery(c, h.validator, &q); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	runs, err := h.runs.ListRuns(ctx, q.Limit)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	if runs == nil {
		runs = []database.Run{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetFreshness reports how old the loaded data is
func (h *PipelineHandler) GetFreshness(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	f, err := h.monitor.Freshness(ctx, h.maxAge)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}
