package handlers

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/commercebi/pkg/api/errors"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/export"
	"github.com/jordanlanch/commercebi/pkg/filter"
	"github.com/jordanlanch/commercebi/pkg/metrics"
	"github.com/jordanlanch/commercebi/pkg/reports"
)

// SnapshotLoader reads every table needed to answer a dashboard query
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// SalesHandler serves filtered sales, reports and exports
type SalesHandler struct {
	store     SnapshotLoader
	validator *validator.Validate
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSalesHandler creates a new sales handler. m may be nil.
func NewSalesHandler(store SnapshotLoader, m *metrics.Metrics) *SalesHandler {
	return &SalesHandler{
		store:     store,
		validator: validator.New(),
		metrics:   m,
		now:       time.Now,
	}
}

// SalesResponse is the filtered order list with its summary
type SalesResponse struct {
	Orders   []domain.Order  `json:"orders"`
	Count    int             `json:"count"`
	Summary  reports.Summary `json:"summary"`
	Warnings []string        `json:"warnings"`
}

// filtered validates the filter query, loads the snapshot and applies the criteria
func (h *SalesHandler) filtered(c echo.Context) (*domain.Snapshot, *filter.Result, error) {
	var q SalesQuery
	if err := bindQuery(c, h.validator, &q); err != nil {
		return nil, nil, err
	}
	criteria, err := q.Criteria()
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	snap, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	res, err := filter.Apply(snap, criteria)
	if err != nil {
		return nil, nil, err
	}
	return snap, res, nil
}

// GetSales godoc
// @Summary Filtered orders
// @Description Returns orders matching every active filter plus totals. start after end is rejected.
// @Tags Sales
// @Produce json
// @Param start query string false "Start date (YYYY-MM-DD)"
// @Param end query string false "End date (YYYY-MM-DD)"
// @Param product query []string false "Product names"
// @Param segment query []string false "Customer segments"
// @Param campaign query []string false "Campaign names"
// @Success 200 {object} SalesResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /sales [get]
func (h *SalesHandler) GetSales(c echo.Context) error {
	_, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, SalesResponse{
		Orders:   res.Orders,
		Count:    len(res.Orders),
		Summary:  reports.Summarize(res.Orders),
		Warnings: res.Warnings,
	})
}

// GetFilterOptions returns the selectable values of each filter
func (h *SalesHandler) GetFilterOptions(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	snap, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, filter.BuildOptions(snap))
}

// GetMonthlyTrend returns filtered sales per year-month
func (h *SalesHandler) GetMonthlyTrend(c echo.Context) error {
	_, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"months":   reports.MonthlyTrend(res.Orders),
		"warnings": res.Warnings,
	})
}

// GetProductPerformance returns revenue and quantity per product
func (h *SalesHandler) GetProductPerformance(c echo.Context) error {
	snap, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": reports.ProductPerformance(res.Orders, snap.Products),
		"warnings": res.Warnings,
	})
}

// GetSegmentDistribution returns the customer count per segment
func (h *SalesHandler) GetSegmentDistribution(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	snap, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"segments": reports.SegmentDistribution(snap.Customers),
	})
}

// GetCampaignPerformance returns spend, conversions and ROI per campaign.
// A campaign filter narrows the list by name.
func (h *SalesHandler) GetCampaignPerformance(c echo.Context) error {
	var q SalesQuery
	if err := bindQuery(c, h.validator, &q); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	snap, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return respondError(c, err)
	}

	campaigns := snap.Campaigns
	if names := selected(q.Campaigns); names != nil {
		campaigns = campaigns[:0:0]
		for _, m := range snap.Campaigns {
			if _, ok := names[m.CampaignName]; ok {
				campaigns = append(campaigns, m)
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"campaigns": reports.CampaignPerformance(campaigns),
	})
}

// GetSalesGrowth returns month-over-month sales growth
func (h *SalesHandler) GetSalesGrowth(c echo.Context) error {
	_, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"growth":   reports.SalesGrowthSeries(res.Orders),
		"warnings": res.Warnings,
	})
}

// GetForecast fits monthly sales against monthly campaign spend
func (h *SalesHandler) GetForecast(c echo.Context) error {
	snap, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}

	forecast, err := reports.Forecast(res.Orders, snap.Campaigns)
	if stderrors.Is(err, reports.ErrInsufficientData) {
		return c.JSON(http.StatusUnprocessableEntity, errors.ErrorResponse{
			Error:   "insufficient_data",
			Message: "At least two months of sales are needed for a forecast.",
		})
	}
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"forecast": forecast,
		"warnings": res.Warnings,
	})
}

// GetCampaignOrders godoc
// @Summary Campaign drill-down
// @Description Returns the campaign rows sharing a name and the filtered orders attributed to it
// @Tags Campaigns
// @Produce json
// @Param name path string true "Campaign name"
// @Success 200 {object} reports.DrillDown
// @Failure 404 {object} errors.ErrorResponse
// @Router /campaigns/{name}/orders [get]
func (h *SalesHandler) GetCampaignOrders(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return errors.ValidationError(c, fmt.Errorf("invalid campaign name %q", c.Param("name")))
	}

	snap, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}

	dd, err := reports.CampaignDrillDown(snap, res.Orders, name)
	if err != nil {
		return respondError(c, err)
	}
	dd.Warnings = append(dd.Warnings, res.Warnings...)
	return c.JSON(http.StatusOK, dd)
}

// ExportSales godoc
// @Summary Download filtered orders
// @Tags Exports
// @Produce text/csv
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} errors.ErrorResponse
// @Router /exports/sales [get]
func (h *SalesHandler) ExportSales(c echo.Context) error {
	var q ExportQuery
	if err := bindQuery(c, h.validator, &q); err != nil {
		return respondError(c, err)
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		return respondError(c, err)
	}

	snap, res, err := h.filtered(c)
	if err != nil {
		return respondError(c, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, res.Orders, snap.Products); err != nil {
		return errors.InternalError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordExportCreated(string(format))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", format.Filename(h.now())))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func selected(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == domain.FilterAll {
			return nil
		}
		set[v] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
