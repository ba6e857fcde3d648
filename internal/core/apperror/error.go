// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Engine failures that reach a caller are AppErrors so the admin API and batch
// summaries can report them by code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal    = "INTERNAL_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"

	// Validation errors (400)
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"

	// Business rule violations (422)
	CodeLedgerImbalance = "LEDGER_IMBALANCE"
	CodeNoMapping       = "NO_MAPPING"

	// Not found (404)
	CodeNotFound    = "NOT_FOUND"
	CodeInvalidItem = "INVALID_ITEM"

	// Conflict (409)
	CodeConflict = "CONFLICT"
)

// AppError is the standard error type for the engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (item ids, totals, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidItem reports an unknown stock item reference. Caller error, never retried.
func NewInvalidItem(itemID any) *AppError {
	return &AppError{
		Code:       CodeInvalidItem,
		Message:    "Unknown stock item",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"item_id": itemID},
	}
}

// NewPersistence wraps a storage layer failure. Operations are idempotent, so the
// caller may retry.
func NewPersistence(op string, err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    fmt.Sprintf("storage failure during %s", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewLedgerImbalance reports debit and credit totals that do not agree.
func NewLedgerImbalance(reference string, debits, credits fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeLedgerImbalance,
		Message:    "Journal entry does not balance",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"reference": reference,
			"debits":    debits.String(),
			"credits":   credits.String(),
		},
	}
}

// NewNoMapping reports a material record without a resolvable stock item.
func NewNoMapping(materialKey string) *AppError {
	return &AppError{
		Code:       CodeNoMapping,
		Message:    "No stock item matches material",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"material_key": materialKey},
	}
}

// NewInvalidPaymentMethod reports a payment method outside the closed set.
func NewInvalidPaymentMethod(method string) *AppError {
	return &AppError{
		Code:       CodeInvalidPaymentMethod,
		Message:    fmt.Sprintf("unsupported payment method %q", method),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"method": method},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsInvalidItem checks if error is CodeInvalidItem
func IsInvalidItem(err error) bool { return HasCode(err, CodeInvalidItem) }

// IsPersistence checks if error is CodePersistence
func IsPersistence(err error) bool { return HasCode(err, CodePersistence) }

// IsLedgerImbalance checks if error is CodeLedgerImbalance
func IsLedgerImbalance(err error) bool { return HasCode(err, CodeLedgerImbalance) }
