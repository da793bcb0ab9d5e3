package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// newContext creates an echo.Context backed by an httptest.NewRecorder
func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// captureLog redirects the standard logger to a buffer for the duration of fn
func captureLog(fn func()) string {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestErrorHelpers(t *testing.T) {
	internal := errors.New("pq: relation \"orders\" does not exist")

	tests := []struct {
		name       string
		call       func(c echo.Context) error
		wantStatus int
		wantCode   string
		wantLogged bool
	}{
		{"ValidationError", func(c echo.Context) error { return ValidationError(c, internal) }, http.StatusBadRequest, "validation_error", true},
		{"InvalidRangeError", func(c echo.Context) error { return InvalidRangeError(c, internal) }, http.StatusBadRequest, "invalid_range", true},
		{"DatabaseError", func(c echo.Context) error { return DatabaseError(c, internal) }, http.StatusInternalServerError, "database_error", true},
		{"InternalError", func(c echo.Context) error { return InternalError(c, internal) }, http.StatusInternalServerError, "internal_error", true},
		{"NotFoundError", func(c echo.Context) error { return NotFoundError(c, "campaign") }, http.StatusNotFound, "not_found", false},
		{"ConflictError", func(c echo.Context) error { return ConflictError(c, "busy") }, http.StatusConflict, "conflict", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/sales")

			var err error
			logged := captureLog(func() { err = tt.call(c) })
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

			body := parseBody(t, rec)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.NotContains(t, body.Message, "pq:")

			if tt.wantLogged {
				assert.Contains(t, logged, "/api/v1/sales")
				assert.Contains(t, logged, "relation")
			}
		})
	}
}

func TestConflictError_ExposesMessage(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/pipeline/run")
	require.NoError(t, ConflictError(c, "Pipeline run already in progress"))
	assert.Equal(t, "Pipeline run already in progress", parseBody(t, rec).Message)
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Invalid range", domain.NewInvalidRangeError("2024-03-01", "2024-02-28"), http.StatusBadRequest, "invalid_range"},
		{"Validation", domain.NewValidationError("bad date"), http.StatusBadRequest, "validation_error"},
		{"Not found", domain.NewNotFoundError("campaign"), http.StatusNotFound, "not_found"},
		{"Missing source", domain.NewMissingSourceError("sales.csv", errors.New("no file")), http.StatusServiceUnavailable, "data_unavailable"},
		{"Wrapped schema violation", errors.Join(errors.New("load"), domain.NewSchemaViolationError("orders", "order_id")), http.StatusServiceUnavailable, "data_unavailable"},
		{"Unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/sales")
			captureLog(func() { require.NoError(t, FromDomain(c, tt.err)) })

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, parseBody(t, rec).Error)
		})
	}
}
