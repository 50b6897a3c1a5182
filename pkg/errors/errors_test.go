package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCaptureError_Error(t *testing.T) {
	err := NewNotFound("capture", "01HX")
	expected := "NOT_FOUND: capture not found: 01HX"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v", err.Details["id"])
	}
}

func TestNewConversionConflict(t *testing.T) {
	err := NewConversionConflict("01HX", "converted")
	if err.Code != ErrConversionConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrConversionConflict)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["status"] != "converted" {
		t.Errorf("Details[status] = %v", err.Details["status"])
	}
}

func TestDegradedUnwraps(t *testing.T) {
	cause := stderrors.New("deadline exceeded")
	err := NewExtractionDegraded("ai", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("convert: %w", NewConversionConflict("a", "deleted"))

	if !Is(wrapped, ErrConversionConflict) {
		t.Error("Is should see through wrapping")
	}
	if Is(wrapped, ErrNotFound) {
		t.Error("Is matched the wrong code")
	}
	if Is(stderrors.New("plain"), ErrInternal) {
		t.Error("Is matched an untyped error")
	}
	if Is(nil, ErrInternal) {
		t.Error("Is matched nil")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidation("raw content is required"), 400},
		{NewDisabled("sms"), 403},
		{NewOCRFailure("att-1", stderrors.New("timeout")), 502},
		{fmt.Errorf("wrapped: %w", NewNotFound("capture", "x")), 404},
		{stderrors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
