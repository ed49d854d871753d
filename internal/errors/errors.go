package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Vinyasa error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrConflict          ErrorCode = "CONFLICT"            // 409 (stale in-flight result)
	ErrEmptyResolution   ErrorCode = "EMPTY_RESOLUTION"    // 422
	ErrOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"  // 502
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// VinyasaError represents a structured error with code, status, and details.
type VinyasaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *VinyasaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *VinyasaError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *VinyasaError {
	return &VinyasaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing entity.
// kind names the entity ("sequence", "pose", "flow block").
func NewNotFound(kind, identifier string) *VinyasaError {
	return &VinyasaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions.
func NewNameAlreadyExists(kind, name string) *VinyasaError {
	return &VinyasaError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("%s with name %q already exists", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewConflict creates a 409 error when a result was computed against a
// sequence version that has since been superseded.
func NewConflict(id string, expected, actual int64) *VinyasaError {
	return &VinyasaError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("sequence %s changed while the operation was in flight (version %d, now %d); result discarded", id, expected, actual),
		Details: map[string]any{"id": id, "expected_version": expected, "actual_version": actual},
	}
}

// NewEmptyResolution creates a 422 error when none of the ids returned by
// the oracle resolve against the pose catalog.
func NewEmptyResolution(returned int) *VinyasaError {
	return &VinyasaError{
		Code:    ErrEmptyResolution,
		Status:  422,
		Message: fmt.Sprintf("none of the %d returned pose ids matched the catalog", returned),
		Details: map[string]any{"returned": returned},
	}
}

// NewOracleUnavailable creates a 502 error for network or parse failures
// talking to the oracle.
func NewOracleUnavailable(endpoint string, err error) *VinyasaError {
	msg := fmt.Sprintf("oracle %s request failed", endpoint)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &VinyasaError{
		Code:    ErrOracleUnavailable,
		Status:  502,
		Message: msg,
		Details: map[string]any{"endpoint": endpoint},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *VinyasaError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &VinyasaError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a VinyasaError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *VinyasaError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}

// As extracts a VinyasaError from err, wrapping anything else as INTERNAL.
func As(err error) *VinyasaError {
	var vErr *VinyasaError
	if stderrors.As(err, &vErr) {
		return vErr
	}
	return NewInternal(err)
}
