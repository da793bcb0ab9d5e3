package handlers

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/commercebi/pkg/api/errors"
	"github.com/jordanlanch/commercebi/pkg/domain"
	"github.com/jordanlanch/commercebi/pkg/filter"
)

// requestTimeout bounds store access per request
const requestTimeout = 5 * time.Second

// SalesQuery holds the filter query parameters shared by the sales, report and export endpoints
type SalesQuery struct {
	Start     string   `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string   `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Products  []string `query:"product" validate:"max=100,dive,max=200"`
	Segments  []string `query:"segment" validate:"max=20,dive,max=50"`
	Campaigns []string `query:"campaign" validate:"max=100,dive,max=200"`
}

// Criteria converts the query into filter criteria
func (q SalesQuery) Criteria() (filter.Criteria, error) {
	var c filter.Criteria
	var err error
	if q.Start != "" {
		if c.DateRange.Start, err = time.Parse(domain.DateLayout, q.Start); err != nil {
			return c, domain.NewValidationError("invalid start date")
		}
	}
	if q.End != "" {
		if c.DateRange.End, err = time.Parse(domain.DateLayout, q.End); err != nil {
			return c, domain.NewValidationError("invalid end date")
		}
	}
	c.Products = q.Products
	c.Segments = q.Segments
	c.Campaigns = q.Campaigns
	return c, c.Validate()
}

// KPIQuery optionally overrides the configured KPI parameters
type KPIQuery struct {
	CACCutoff  string `query:"cac_cutoff" validate:"omitempty,datetime=2006-01-02"`
	GrowthYear int    `query:"growth_year" validate:"omitempty,min=1900,max=2100"`
}

// ExportQuery selects the export file format
type ExportQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// RunsQuery pages the pipeline run ledger
type RunsQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// bindQuery binds and validates query parameters into req
func bindQuery(c echo.Context, v *validator.Validate, req interface{}) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
		return domain.NewValidationError(err.Error())
	}
	if err := v.Struct(req); err != nil {
		return domain.NewValidationError(err.Error())
	}
	return nil
}

// respondError replies with the status matching err. Errors without a domain code
// come from the store.
func respondError(c echo.Context, err error) error {
	var de *domain.DomainError
	if stderrors.As(err, &de) {
		return errors.FromDomain(c, err)
	}
	return errors.DatabaseError(c, err)
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
