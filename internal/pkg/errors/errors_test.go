package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "invalid input")

	if err.Code != CodeValidation {
		t.Errorf("expected code=%s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "invalid input" {
		t.Errorf("expected message='invalid input', got %s", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeValidation, "invalid"),
			contains: []string{"VALIDATION_ERROR", "invalid"},
		},
		{
			name: "error with op",
			err: &Error{
				Code:    CodeInternal,
				Message: "db failed",
				Op:      "render.dispatch",
			},
			contains: []string{"render.dispatch", "INTERNAL_ERROR", "db failed"},
		},
		{
			name: "error with underlying",
			err: &Error{
				Code:    CodeQueueUnavailable,
				Message: "enqueue failed",
				Err:     fmt.Errorf("connection refused"),
			},
			contains: []string{"QUEUE_UNAVAILABLE", "enqueue failed", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrap(t *testing.T) {
	original := fmt.Errorf("original error")
	wrapped := Wrap(original, "service.call", "service call failed")

	if wrapped == nil {
		t.Fatal("expected wrapped error to be non-nil")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code=%s, got %s", CodeInternal, wrapped.Code)
	}
	if wrapped.Op != "service.call" {
		t.Errorf("expected op='service.call', got %s", wrapped.Op)
	}
	if errors.Unwrap(wrapped) != original {
		t.Error("Unwrap should return original error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "op", "message") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	original := RateLimited("daily render limit reached")
	wrapped := Wrap(original, "handler", "handler failed")

	if wrapped.Code != CodeRateLimited {
		t.Errorf("expected code to be preserved as %s, got %s", CodeRateLimited, wrapped.Code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, 400},
		{CodeUnauthorized, 401},
		{CodeForbidden, 403},
		{CodeNotFound, 404},
		{CodeConflict, 409},
		{CodeRateLimited, 429},
		{CodeUnavailable, 503},
		{CodeQueueUnavailable, 503},
		{CodeTimeout, 504},
		{CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "test")
			if got := err.HTTPStatus(); got != tt.status {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.status)
			}
		})
	}
}

func TestRateLimitedAndQueueUnavailableAreDistinct(t *testing.T) {
	rl := RateLimited("limit reached")
	qu := QueueUnavailable("redis")

	if rl.Code == qu.Code {
		t.Error("RATE_LIMITED and QUEUE_UNAVAILABLE must be distinguishable by code")
	}
	if !IsRateLimited(rl) || IsRateLimited(qu) {
		t.Error("IsRateLimited should match only rate-limited errors")
	}
	if !IsQueueUnavailable(qu) || IsQueueUnavailable(rl) {
		t.Error("IsQueueUnavailable should match only queue-unavailable errors")
	}
}

func TestNotFoundFields(t *testing.T) {
	err := NotFound("video", "vid_123")

	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	fields := GetFields(err)
	if fields["resource"] != "video" || fields["id"] != "vid_123" {
		t.Errorf("expected resource/id fields, got %v", fields)
	}
}

func TestGetCodeNonCustomError(t *testing.T) {
	if GetCode(fmt.Errorf("plain")) != CodeInternal {
		t.Error("plain errors should map to CodeInternal")
	}
	if GetHTTPStatus(fmt.Errorf("plain")) != 500 {
		t.Error("plain errors should map to status 500")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeNotFound, "a")
	b := New(CodeNotFound, "b")

	if !errors.Is(a, b) {
		t.Error("errors with the same code should match via errors.Is")
	}
}
