package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/kpi"
)

// KPIReader returns a KPI report, cached or freshly computed
type KPIReader interface {
	Get(ctx context.Context, p kpi.Params) *kpi.Report
}

// KPIHandler serves the five headline KPIs
type KPIHandler struct {
	kpis      KPIReader
	defaults  kpi.Params
	validator *validator.Validate
}

// NewKPIHandler creates a new KPI handler
func NewKPIHandler(kpis KPIReader, defaults kpi.Params) *KPIHandler {
	return &KPIHandler{kpis: kpis, defaults: defaults, validator: validator.New()}
}

// KPIResponse maps each KPI key to its value in report order
type KPIResponse struct {
	KPIs    map[string]kpi.Value `json:"kpis"`
	Order   []string             `json:"order"`
	Report  *kpi.Report          `json:"report"`
	Partial bool                 `json:"partial"`
}

// GetKPIs godoc
// @Summary Headline KPIs
// @Description Returns CAC, CLV, conversion rate, sales growth and AOV. A failed KPI carries an error marker without affecting the others.
// @Tags KPIs
// @Produce json
// @Param cac_cutoff query string false "CAC signup cutoff (YYYY-MM-DD)"
// @Param growth_year query integer false "Sales growth year"
// @Success 200 {object} KPIResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /kpis [get]
func (h *KPIHandler) GetKPIs(c echo.Context) error {
	var q KPIQuery
	if err := bindQuery(c, h.validator, &q); err != nil {
		return respondError(c, err)
	}

	params := h.defaults
	if q.CACCutoff != "" || q.GrowthYear != 0 {
		cutoff := q.CACCutoff
		if cutoff == "" {
			cutoff = domain.FormatDate(h.defaults.CACCutoff)
		}
		year := q.GrowthYear
		if year == 0 {
			year = h.defaults.GrowthYear
		}
		var err error
		if params, err = kpi.ParseParams(cutoff, year); err != nil {
			return respondError(c, err)
		}
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	report := h.kpis.Get(ctx, params)

	values := make(map[string]kpi.Value, len(report.Metrics))
	order := make([]string, 0, len(report.Metrics))
	for _, m := range report.Metrics {
		values[m.Name] = m.Value
		order = append(order, m.Name)
	}

	return c.JSON(http.StatusOK, KPIResponse{
		KPIs:    values,
		Order:   order,
		Report:  report,
		Partial: report.Failed(),
	})
}
