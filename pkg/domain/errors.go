package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeMissingSource   = "MISSING_SOURCE"
	ErrCodeInvalidRange    = "INVALID_RANGE"
	ErrCodeSchemaViolation = "SCHEMA_VIOLATION"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewMissingSourceError reports a required input file or table that is absent
func NewMissingSourceError(source string, err error) error {
	return &DomainError{
		Code:    ErrCodeMissingSource,
		Message: fmt.Sprintf("source %s is not available", source),
		Err:     err,
	}
}

// NewInvalidRangeError reports a date range whose start is after its end
func NewInvalidRangeError(start, end string) error {
	return &DomainError{
		Code:    ErrCodeInvalidRange,
		Message: fmt.Sprintf("start date %s is after end date %s", start, end),
	}
}

// NewSchemaViolationError reports a required column missing from an input table
func NewSchemaViolationError(table, field string) error {
	return &DomainError{
		Code:    ErrCodeSchemaViolation,
		Message: fmt.Sprintf("%s: missing required field: %s", table, field),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsMissingSource checks if the error is a missing-source error
func IsMissingSource(err error) bool {
	return hasCode(err, ErrCodeMissingSource)
}

// IsInvalidRange checks if the error is an invalid-range error
func IsInvalidRange(err error) bool {
	return hasCode(err, ErrCodeInvalidRange)
}

// IsSchemaViolation checks if the error is a schema-violation error
func IsSchemaViolation(err error) bool {
	return hasCode(err, ErrCodeSchemaViolation)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
