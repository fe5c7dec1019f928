// Package errors defines the error taxonomy shared by the highlighting core
// and the service around it: sentinel values for errors.Is checks and an
// AppError wrapper that carries the HTTP status used by handlers.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInput marks malformed or incomplete term-vector input, such as a
	// term without offset data. Callers skip the field, not the document.
	ErrInput = errors.New("invalid term vector input")
	// ErrIndexRead marks a failure to read the term dictionary or stored
	// field data.
	ErrIndexRead = errors.New("index read failed")

	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Input builds an ErrInput error for the given field.
func Input(format string, args ...any) *AppError {
	return Newf(ErrInput, http.StatusUnprocessableEntity, format, args...)
}

// IndexRead wraps cause as an ErrIndexRead error. The cause stays reachable
// through errors.Is / errors.As on the returned chain.
func IndexRead(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", Newf(ErrIndexRead, http.StatusServiceUnavailable, format, args...), cause)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexRead):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short label for err suitable for metrics and per-field
// error reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrIndexRead):
		return "index_read"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "internal"
	}
}
