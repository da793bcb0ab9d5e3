package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
)

var testOrigins = []string{"http://localhost:3000", "https://bi.example.com"}

// newCORSEcho creates an Echo instance with the dashboard CORS config and a test route.
func newCORSEcho() *echo.Echo {
	e := echo.New()
	e.Use(middleware.CORSWithConfig(CORSConfig(testOrigins)))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCORS_AllowedOrigins(t *testing.T) {
	for _, origin := range testOrigins {
		t.Run(origin, func(t *testing.T) {
			e := newCORSEcho()

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Origin", origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
		})
	}
}

func TestCORS_BlockedOrigins(t *testing.T) {
	tests := []struct {
		name   string
		origin string
	}{
		{"unknown external site", "https://evil.com"},
		{"similar domain attack", "https://bi.example.com.evil.com"},
		{"different port on localhost", "http://localhost:8080"},
		{"null origin", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCORSEcho()

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.NotEqual(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	e := newCORSEcho()

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://bi.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://bi.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	methods := rec.Header().Get("Access-Control-Allow-Methods")
	assert.Contains(t, methods, http.MethodGet)
	assert.Contains(t, methods, http.MethodPost)
	assert.NotContains(t, methods, http.MethodDelete)
}
