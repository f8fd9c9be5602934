package catalog

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

var errUpstream = &APIError{Op: "test", StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    CircuitState
		expected string
	}{
		{"Closed", StateClosed, "closed"},
		{"Open", StateOpen, "open"},
		{"Half Open", StateHalfOpen, "half_open"},
		{"Unknown", CircuitState(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("CircuitState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)

	for i := 0; i < 2; i++ {
		if err := cb.Call(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("Call() error = %v, want upstream error", err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Call() error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function should not run while the breaker is open")
	}
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	permanent := &APIError{Op: "test", StatusCode: http.StatusBadRequest, Message: "bad"}

	_ = cb.Call(func() error { return permanent })

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errUpstream })
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	now = now.Add(2 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open", cb.State())
	}

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(3, time.Second)
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errUpstream })
	}
	now = now.Add(2 * time.Second)

	_ = cb.Call(func() error { return errUpstream })
	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("State() after Reset = %v, want closed", cb.State())
	}
}
