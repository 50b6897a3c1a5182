// Package errors is the capture pipeline's error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of pipeline error.
type ErrorCode string

const (
	ErrValidation         ErrorCode = "VALIDATION"          // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrConversionConflict ErrorCode = "CONVERSION_CONFLICT" // 409
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"  // 409
	ErrDisabled           ErrorCode = "CHANNEL_DISABLED"    // 403
	ErrExtractionDegraded ErrorCode = "EXTRACTION_DEGRADED" // non-fatal
	ErrOCRFailure         ErrorCode = "OCR_FAILURE"         // 502
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// CaptureError is a structured error with code, HTTP status and details.
type CaptureError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CaptureError) Unwrap() error { return e.cause }

// NewValidation creates a 400 error for a malformed envelope or request.
func NewValidation(msg string) *CaptureError {
	return &CaptureError{Code: ErrValidation, Status: 400, Message: msg}
}

// NewNotFound creates a 404 error for a missing capture or attachment.
func NewNotFound(kind, id string) *CaptureError {
	return &CaptureError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewConversionConflict creates a 409 error for converting an item that is
// already converted or deleted.
func NewConversionConflict(id, status string) *CaptureError {
	return &CaptureError{
		Code:    ErrConversionConflict,
		Status:  409,
		Message: fmt.Sprintf("capture %s cannot be converted from status %s", id, status),
		Details: map[string]any{"id": id, "status": status},
	}
}

// NewInvalidTransition creates a 409 error for a status change the lifecycle
// does not allow, such as archiving a converted item.
func NewInvalidTransition(id, from, to string) *CaptureError {
	return &CaptureError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("capture %s cannot move from %s to %s", id, from, to),
		Details: map[string]any{"id": id, "from": from, "to": to},
	}
}

// NewDisabled creates a 403 error for a channel switched off in settings.
func NewDisabled(channel string) *CaptureError {
	return &CaptureError{
		Code:    ErrDisabled,
		Status:  403,
		Message: fmt.Sprintf("%s capture is not enabled for this account", channel),
		Details: map[string]any{"channel": channel},
	}
}

// NewExtractionDegraded records an optional analysis stage that failed or
// timed out. The pipeline continues without it.
func NewExtractionDegraded(stage string, err error) *CaptureError {
	return &CaptureError{
		Code:    ErrExtractionDegraded,
		Status:  200,
		Message: fmt.Sprintf("%s analysis unavailable: %v", stage, err),
		Details: map[string]any{"stage": stage},
		cause:   err,
	}
}

// NewOCRFailure creates an error for an attachment whose recognition failed.
func NewOCRFailure(attachmentID string, err error) *CaptureError {
	return &CaptureError{
		Code:    ErrOCRFailure,
		Status:  502,
		Message: fmt.Sprintf("ocr failed for attachment %s: %v", attachmentID, err),
		Details: map[string]any{"attachment_id": attachmentID},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected failures.
func NewInternal(err error) *CaptureError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CaptureError{Code: ErrInternal, Status: 500, Message: msg, cause: err}
}

// Is reports whether err is, or wraps, a CaptureError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CaptureError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, 500 for anything untyped.
func StatusOf(err error) int {
	var cErr *CaptureError
	if stderrors.As(err, &cErr) {
		return cErr.Status
	}
	return 500
}
