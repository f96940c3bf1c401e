package docbase

import (
	"context"
	"sync"
	"time"
)

// CircuitBreaker fails fast when a snapshot backend is unavailable,
// instead of letting every Save stall on a dead dependency.
//
// States:
//   - Closed: normal operation, calls pass through
//   - Open: backend failing, calls fail fast with ErrStoreUnavailable
//   - Half-Open: probing whether the backend recovered
type CircuitBreaker struct {
	mu            sync.RWMutex
	maxFailures   int
	resetTimeout  time.Duration
	failures      int
	lastFailTime  time.Time
	state         string // "closed", "open", "half-open"
	onStateChange func(from, to string)
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        "closed",
	}
}

// WithStateChangeCallback adds a callback for state transitions. Useful
// for metrics and logging.
func (cb *CircuitBreaker) WithStateChangeCallback(fn func(from, to string)) *CircuitBreaker {
	cb.onStateChange = fn
	return cb
}

// Execute runs fn if the circuit is closed or half-open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return WithContext(ErrStoreUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
			"state":  cb.State(),
		})
	}

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case "open":
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.setState("half-open")
			return true
		}
		return false
	case "half-open":
		return true
	default: // closed
		return true
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()
		if cb.failures >= cb.maxFailures && cb.state != "open" {
			cb.setState("open")
		}
		return
	}
	if cb.state == "half-open" {
		cb.setState("closed")
		cb.failures = 0
	} else if cb.state == "closed" {
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) setState(newState string) {
	oldState := cb.state
	cb.state = newState
	if cb.onStateChange != nil {
		cb.onStateChange(oldState, newState)
	}
}

// State returns the current state (closed, open, or half-open).
func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.setState("closed")
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// ResilientSnapshotStore wraps a snapshot store with a circuit breaker,
// so a dead backend (an unreachable Redis, a full disk) fails Save and
// Load fast instead of stalling commit-adjacent paths.
type ResilientSnapshotStore struct {
	inner   SnapshotStore
	breaker *CircuitBreaker
}

// NewResilientSnapshotStore wraps inner with the given breaker.
func NewResilientSnapshotStore(inner SnapshotStore, breaker *CircuitBreaker) *ResilientSnapshotStore {
	return &ResilientSnapshotStore{inner: inner, breaker: breaker}
}

func (s *ResilientSnapshotStore) Load(ctx context.Context, collection string) ([]Entity, error) {
	var entities []Entity
	err := s.breaker.Execute(ctx, func() error {
		var innerErr error
		entities, innerErr = s.inner.Load(ctx, collection)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *ResilientSnapshotStore) Save(ctx context.Context, collection string, entities []Entity) error {
	return s.breaker.Execute(ctx, func() error {
		return s.inner.Save(ctx, collection, entities)
	})
}
