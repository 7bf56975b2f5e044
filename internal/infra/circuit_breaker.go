package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Closed → Open → Half-Open breaker shared by the database guard and the
// outbox relay. While open, calls fail fast with ErrCircuitOpen; after
// OpenTimeout a probe is let through and SuccessThreshold consecutive
// successes close it again.

// CBState is the breaker position.
type CBState int

const (
	CBClosed   CBState = iota // calls pass through
	CBOpen                    // calls fail fast
	CBHalfOpen                // probing
)

// String is used by /health and the transition logs.
func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned by Execute without calling fn.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds tunable parameters. Zero values fall back to
// 5 failures, 2 successes and a 60s open window.
type CircuitBreakerConfig struct {
	Name             string // appears in transition logs
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	// IsFailure decides which errors count against the breaker. Business
	// errors (duplicate key, not found) must not trip it. Nil counts all.
	IsFailure func(error) bool
}

// DefaultCBConfig returns the thresholds used for the database and broker.
func DefaultCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     CBState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: CBClosed}
}

// State returns the current position, moving an expired open breaker to
// half-open first. Safe for concurrent use.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireOpen()
	return cb.state
}

// Execute runs fn unless the breaker is open, and records the outcome.
// fn's error is always returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err)) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

// The helpers below are called with mu held.

func (cb *CircuitBreaker) expireOpen() {
	if cb.state == CBOpen && time.Since(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.moveTo(CBHalfOpen)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	switch cb.state {
	case CBClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.moveTo(CBOpen)
		}
	case CBHalfOpen:
		cb.moveTo(CBOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case CBClosed:
		cb.failures = 0
	case CBHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.moveTo(CBClosed)
		}
	}
}

func (cb *CircuitBreaker) moveTo(next CBState) {
	prev := cb.state
	cb.state = next
	cb.failures = 0
	cb.successes = 0
	if next == CBOpen {
		cb.openedAt = time.Now()
	}

	ev := log.Info()
	if next == CBOpen {
		ev = log.Warn()
	}
	ev.Str("breaker", cb.cfg.Name).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("circuit breaker state change")
}
