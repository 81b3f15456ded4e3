package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error shape: a stable machine code, a human message and
// the HTTP status it maps to. The wrapped cause never reaches the wire.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a sentinel error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap keeps err as the cause behind a typed error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Clone copies a sentinel so its message can be specialized without touching
// the shared value.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	out := *err
	if message != "" {
		out.Message = message
	}
	return &out
}

// FromError resolves any error to an *Error, defaulting unknown causes to an
// internal error so no raw driver message leaks to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Sentinel errors. Handlers and services specialize these via Clone and Wrap
// rather than inventing codes inline.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Leave-domain errors. Insufficient balance is a conflict, not a
	// validation failure: the request was well formed but the ledger cannot
	// cover it.
	ErrInsufficientBalance = New("INSUFFICIENT_BALANCE", http.StatusConflict, "insufficient leave balance")
	ErrPolicyViolation     = New("POLICY_VIOLATION", http.StatusBadRequest, "leave policy violation")

	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)
