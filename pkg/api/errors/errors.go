package errors

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/commercebi/pkg/domain"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InvalidRangeError rejects a date range whose start is after its end
func InvalidRangeError(c echo.Context, err error) error {
	log.Printf("[INVALID RANGE] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_range",
		Message: "Start date must be on or before end date.",
	})
}

// DatabaseError returns a generic database error without exposing internal details
func DatabaseError(c echo.Context, err error) error {
	log.Printf("[DATABASE ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "database_error",
		Message: "A database error occurred. Please try again later.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, ErrorResponse{
		Error:   "conflict",
		Message: message, // Message is safe to expose (e.g., "Pipeline run already in progress")
	})
}

// FromDomain maps a domain error code to the matching reply. Anything else is internal.
func FromDomain(c echo.Context, err error) error {
	switch {
	case domain.IsInvalidRange(err):
		return InvalidRangeError(c, err)
	case domain.IsValidation(err):
		return ValidationError(c, err)
	case domain.IsNotFound(err):
		return NotFoundError(c, err.Error())
	case domain.IsMissingSource(err), domain.IsSchemaViolation(err):
		log.Printf("[DATA ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "data_unavailable",
			Message: "The requested data is not available yet. Run the pipeline and try again.",
		})
	default:
		return InternalError(c, err)
	}
}
