package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests allowed
	CircuitOpen                         // Failures exceeded threshold, requests blocked
	CircuitHalfOpen                     // Testing if the backend recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker
type BreakerConfig struct {
	FailureThreshold int           // Failures within FailureWindow that open the circuit (default: 5)
	SuccessThreshold int           // Successes in half-open that close it (default: 2)
	Timeout          time.Duration // Time spent open before probing (default: 30s)
	FailureWindow    time.Duration // Window to count failures (default: 1 minute)
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		FailureWindow:    time.Minute,
	}
}

// CircuitOpenError is returned while a backend is considered down.
type CircuitOpenError struct {
	Driver string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("store %s: circuit open, backend unavailable", e.Driver)
}

// Breaker stops calling a failing backend until it has had time to recover.
// Only retryable failures count; ErrNotFound and cancellations do not.
type Breaker struct {
	inner  Store
	driver string
	config BreakerConfig
	log    *zap.Logger

	mu              sync.Mutex
	state           CircuitState
	failures        []time.Time // Recent failure timestamps
	successes       int         // Consecutive successes in half-open state
	lastStateChange time.Time
	now             func() time.Time
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Store, driver string, cfg BreakerConfig, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		inner:           inner,
		driver:          driver,
		config:          cfg,
		log:             log,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
		now:             time.Now,
	}
}

// Put stores through the breaker.
func (b *Breaker) Put(ctx context.Context, markdown []byte) (string, error) {
	if !b.allow() {
		return "", &CircuitOpenError{Driver: b.driver}
	}
	id, err := b.inner.Put(ctx, markdown)
	b.record(err)
	return id, err
}

// Get reads through the breaker.
func (b *Breaker) Get(ctx context.Context, id string) ([]byte, error) {
	if !b.allow() {
		return nil, &CircuitOpenError{Driver: b.driver}
	}
	markdown, err := b.inner.Get(ctx, id)
	b.record(err)
	return markdown, err
}

// Close closes the inner store.
func (b *Breaker) Close() error {
	return b.inner.Close()
}

// State returns the current circuit state
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen {
		if b.now().Sub(b.lastStateChange) < b.config.Timeout {
			return false
		}
		b.transitionTo(CircuitHalfOpen)
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil:
		b.recordSuccess()
	case shouldRetry(err):
		b.recordFailure(b.now())
	}
}

func (b *Breaker) recordSuccess() {
	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = b.failures[:0]
	}
}

func (b *Breaker) recordFailure(now time.Time) {
	cutoff := now.Add(-b.config.FailureWindow)
	recent := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	b.failures = append(recent, now)

	switch b.state {
	case CircuitClosed:
		if len(b.failures) >= b.config.FailureThreshold {
			b.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure while probing reopens the circuit
		b.transitionTo(CircuitOpen)
	}
}

func (b *Breaker) transitionTo(state CircuitState) {
	if b.state == state {
		return
	}
	b.log.Warn("circuit state changed",
		zap.String("driver", b.driver),
		zap.Stringer("from", b.state),
		zap.Stringer("to", state))

	b.state = state
	b.lastStateChange = b.now()
	b.successes = 0
	if state == CircuitClosed {
		b.failures = b.failures[:0]
	}
}
