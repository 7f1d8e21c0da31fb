package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Ledger error codes. Each maps to one precondition an operation can
// violate, so callers can render a precise message.
const (
	ErrValidation ErrorCode = iota + 2000
	ErrInsufficientStock
	ErrUnauthorizedTransfer
	ErrAlreadyRecalled
	ErrRecallWindowExpired
	ErrConflict
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

// InsufficientStock reports a failed allocation. The allocation is atomic,
// so no codes were consumed.
func InsufficientStock(requested, available int) *AppError {
	return &AppError{
		Code:    ErrInsufficientStock,
		Message: fmt.Sprintf("insufficient stock: requested %d, available %d", requested, available),
	}
}

// UnauthorizedTransfer reports that the caller is not the current owner of
// a targeted code.
func UnauthorizedTransfer(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorizedTransfer,
		Message: message,
	}
}

func AlreadyRecalled(resource string) *AppError {
	return &AppError{
		Code:    ErrAlreadyRecalled,
		Message: fmt.Sprintf("%s has already been recalled", resource),
	}
}

func RecallWindowExpired(message string) *AppError {
	return &AppError{
		Code:    ErrRecallWindowExpired,
		Message: message,
	}
}

// Conflict reports a lost concurrency race, e.g. a duplicate idempotency
// key inserted by a parallel request.
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the application error code, ErrInternal if err is not an
// AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given application error code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
