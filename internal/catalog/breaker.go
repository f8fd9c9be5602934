package catalog

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed lets requests through
	StateClosed CircuitState = iota
	// StateOpen short-circuits requests until the reset timeout elapses
	StateOpen
	// StateHalfOpen lets a single trial request through
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates the breaker is refusing calls to the store
var ErrCircuitOpen = errors.New("catalog circuit breaker is open")

// CircuitBreaker stops background pollers from hammering a store that keeps failing.
// Only transient failures count towards the threshold.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		state:            StateClosed,
	}
}

// Call executes fn if the breaker allows it
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.CanAttempt() {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && IsTransient(err) {
		cb.recordFailureLocked()
		return err
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
	}
	return err
}

// recordFailureLocked records a failed operation (must hold lock)
func (cb *CircuitBreaker) recordFailureLocked() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// State returns the current state, moving Open to HalfOpen once the reset timeout elapsed
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.failures = 0
	}
	return cb.state
}

// CanAttempt returns true if the breaker allows an attempt
func (cb *CircuitBreaker) CanAttempt() bool {
	return cb.State() != StateOpen
}

// Reset returns the breaker to its initial state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
}
