package utils

import (
	"errors"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorCode string

const (
	ErrCodeValidation                 ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound                   ErrorCode = "NOT_FOUND"
	ErrCodeInternal                   ErrorCode = "INTERNAL"
	ErrCodeIdempotencyPayloadConflict ErrorCode = "IDEMPOTENCY_PAYLOAD_CONFLICT"
	ErrCodeIdempotencyInProgress      ErrorCode = "IDEMPOTENCY_IN_PROGRESS"
	ErrCodeInsufficientStock          ErrorCode = "INSUFFICIENT_STOCK"
	ErrCodeShiftRequired              ErrorCode = "SHIFT_REQUIRED"
	ErrCodeForbiddenBranchScope       ErrorCode = "FORBIDDEN_BRANCH_SCOPE"
	ErrCodeInvalidStatusTransition    ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeStatusTransitionForbidden  ErrorCode = "STATUS_TRANSITION_FORBIDDEN"
	ErrCodeCancellationReasonRequired ErrorCode = "CANCELLATION_REASON_REQUIRED"
	ErrCodeOrderVersionConflict       ErrorCode = "ORDER_VERSION_CONFLICT"
	ErrCodeInvalidLifecycleState      ErrorCode = "INVALID_LIFECYCLE_STATE"
)

// AppError carries a machine-readable code across the workflow boundary.
// Meta holds extra context the caller needs to resolve a conflict
// (e.g. the current updated_at on a version conflict).
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Meta       map[string]interface{}
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(code ErrorCode, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func NewValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, http.StatusBadRequest, message)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrCodeNotFound, http.StatusNotFound, message)
}

func (e *AppError) WithMeta(key string, value interface{}) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]interface{}{}
	}
	e.Meta[key] = value
	return e
}

func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusOf maps any error to a response status. Unknown errors are
// surfaced as 500 without leaking details to the caller.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
