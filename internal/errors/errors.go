// Package errors provides custom error types for the plancast API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Is reports whether target carries the same error code. AppErrors are
// matched by code so Wrap/WithMessage derivatives still compare equal
// to their sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Authentication errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_FAILED", Message: "Request validation failed", StatusCode: http.StatusBadRequest}
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Plan and projection errors.
var (
	ErrPlanNotFound       = &AppError{Code: "PLAN_NOT_FOUND", Message: "Business plan not found", StatusCode: http.StatusNotFound}
	ErrProjectionNotFound = &AppError{Code: "PROJECTION_NOT_FOUND", Message: "Projection item not found", StatusCode: http.StatusNotFound}
)

// Currency and exchange-rate errors.
var (
	ErrCurrencyNotFound = &AppError{Code: "CURRENCY_NOT_FOUND", Message: "Currency not found", StatusCode: http.StatusNotFound}
	ErrRateNotFound     = &AppError{Code: "RATE_NOT_FOUND", Message: "No exchange rate available for the currency pair at the requested date", StatusCode: http.StatusNotFound}
)

// Tax errors.
var (
	ErrTaxRuleNotFound = &AppError{Code: "TAX_RULE_NOT_FOUND", Message: "No tax rule matches the jurisdiction and category", StatusCode: http.StatusNotFound}
)

// KPI and investment-analysis errors.
var (
	ErrKPINotFound        = &AppError{Code: "KPI_NOT_FOUND", Message: "KPI not found", StatusCode: http.StatusNotFound}
	ErrAnalysisNotFound   = &AppError{Code: "ANALYSIS_NOT_FOUND", Message: "Investment analysis not found", StatusCode: http.StatusNotFound}
	ErrNoConvergence      = &AppError{Code: "NO_CONVERGENCE", Message: "IRR computation did not converge within the search interval", StatusCode: http.StatusUnprocessableEntity}
	ErrComputationFailure = &AppError{Code: "COMPUTATION_FAILURE", Message: "Financial computation failed", StatusCode: http.StatusUnprocessableEntity}
)

// Long-running operation errors.
var (
	ErrCancelled = &AppError{Code: "CANCELLED", Message: "The operation was cancelled before completion", StatusCode: http.StatusRequestTimeout}
)
