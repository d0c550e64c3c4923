package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Network, "network"},
		{Timeout, "timeout"},
		{Auth, "auth"},
		{NotFound, "not_found"},
		{ServerError, "server_error"},
		{ClientError, "client_error"},
		{Parse, "parse"},
		{Store, "store"},
		{Cancelled, "cancelled"},
		{Unknown, "unknown"},
		{ErrorType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalysisError_Error(t *testing.T) {
	e := New(Parse, "session.har", "har_parse", "unexpected token", nil)
	msg := e.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}

	withCause := New(Network, "https://api.example.com", "probe", "dial failed", errors.New("refused"))
	if withCause.Error() == msg {
		t.Error("errors with and without cause render identically")
	}
}

func TestAnalysisError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := New(Store, "catalog.db", "save", "write failed", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is did not find wrapped cause")
	}
}

func TestAnalysisError_Is(t *testing.T) {
	a := New(Timeout, "a", "probe", "slow", nil)
	b := New(Timeout, "b", "probe", "also slow", nil)
	c := New(Network, "c", "probe", "down", nil)

	if !errors.Is(a, b) {
		t.Error("same-type AnalysisErrors should match")
	}
	if errors.Is(a, c) {
		t.Error("different-type AnalysisErrors should not match")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, Unknown},
		{"context cancelled", context.Canceled, Cancelled},
		{"deadline exceeded", context.DeadlineExceeded, Timeout},
		{"dns error", &net.DNSError{Err: "no such host", Name: "api.example.com"}, Network},
		{"connection refused", syscall.ECONNREFUSED, Network},
		{"plain error", errors.New("something odd"), Unknown},
		{"already categorized", New(Auth, "x", "probe", "denied", nil), Auth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err, "subject")
			if tt.err == nil {
				if got != nil {
					t.Fatalf("Categorize(nil) = %v, want nil", got)
				}
				return
			}
			if got.Type != tt.want {
				t.Errorf("Categorize() type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestCategorizeHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
		isNil  bool
	}{
		{200, Unknown, true},
		{204, Unknown, true},
		{301, Unknown, true},
		{401, Auth, false},
		{403, Auth, false},
		{404, NotFound, false},
		{422, ClientError, false},
		{500, ServerError, false},
		{503, ServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			got := CategorizeHTTPStatus(tt.status, "https://api.example.com/v1/me")
			if tt.isNil {
				if got != nil {
					t.Fatalf("CategorizeHTTPStatus(%d) = %v, want nil", tt.status, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("CategorizeHTTPStatus(%d) = nil, want %v", tt.status, tt.want)
			}
			if got.Type != tt.want {
				t.Errorf("type = %v, want %v", got.Type, tt.want)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
		})
	}
}

func TestGetStatusCode(t *testing.T) {
	e := CategorizeHTTPStatus(503, "x")
	if got := GetStatusCode(e); got != 503 {
		t.Errorf("GetStatusCode = %d, want 503", got)
	}
	if got := GetStatusCode(errors.New("plain")); got != 0 {
		t.Errorf("GetStatusCode(plain) = %d, want 0", got)
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(CategorizeHTTPStatus(401, "x")) {
		t.Error("401 should be an auth error")
	}
	if IsAuthError(CategorizeHTTPStatus(500, "x")) {
		t.Error("500 should not be an auth error")
	}
}
