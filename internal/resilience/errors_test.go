package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitAndWrapped(t *testing.T) {
	te := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(te) {
		t.Error("expected TransientError to be transient")
	}
	if !IsTransient(fmt.Errorf("api call failed: %w", te)) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilAndRegular(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
	if IsTransient(errors.New("invalid input")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_NetworkErrors(t *testing.T) {
	cases := []error{
		fmt.Errorf("write tcp: %w", syscall.ECONNRESET),
		fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
		&net.DNSError{IsTimeout: true, Err: "timeout"},
		errors.New("connection reset by peer"),
		errors.New("i/o timeout"),
	}
	for _, err := range cases {
		if !IsTransient(err) {
			t.Errorf("expected %v to be transient", err)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 409, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("Unwrap should expose the inner error")
	}
	if te.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", te.StatusCode)
	}
}
