// Package errors defines the structured error taxonomy shared by the sampler,
// the analyzers, the exporters and both transports.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeGeometry                 ErrorType = "geometry"
	ErrorTypeCrossOriginBlocked       ErrorType = "cross_origin_blocked"
	ErrorTypeImageFetchFailed         ErrorType = "image_fetch_failed"
	ErrorTypeCanvasContextUnavailable ErrorType = "canvas_context_unavailable"
	ErrorTypeExportSerialization      ErrorType = "export_serialization"
	ErrorTypeDuplicateColor           ErrorType = "duplicate_color"
	ErrorTypeValidation               ErrorType = "validation"
	ErrorTypeNotFound                 ErrorType = "not_found"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying extra detail text.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewGeometryError creates a geometry error. Geometry errors are normally
// corrected by clamping; this constructor exists for the few callers that must
// reject a surface outright (zero natural or rendered size).
func NewGeometryError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeGeometry,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewCrossOriginBlockedError reports that the image could not be drawn and no
// relay was able to supply its bytes.
func NewCrossOriginBlockedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCrossOriginBlocked,
		Message:    message,
		StatusCode: http.StatusForbidden,
		Cause:      cause,
	}
}

// NewImageFetchFailedError reports a failed relay call.
func NewImageFetchFailedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeImageFetchFailed,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewCanvasContextUnavailableError reports that no drawing surface could be allocated.
func NewCanvasContextUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCanvasContextUnavailable,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewExportSerializationError reports a failed export encoding.
func NewExportSerializationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExportSerialization,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewDuplicateColorError is the soft, informational rejection of a color that
// matches an existing sample within tolerance.
func NewDuplicateColorError(message string, existingID string) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicateColor,
		Message:    message,
		Details:    existingID,
		StatusCode: http.StatusConflict,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Cause:      cause,
	}
}

// As extracts the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
