package infra

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how the persistence boundary retries transient failures.
type RetryPolicy struct {
	Attempts int           // total attempts including the first (default: 3)
	Backoff  time.Duration // initial delay, doubled per attempt (default: 50ms)
}

// IsTransient reports whether err is a connection-level failure that is safe
// to retry: the statement either never reached the server or the whole
// transaction was rolled back by it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// WithRetry runs fn through cb (when non-nil) and retries transient failures.
// Non-transient errors are returned immediately.
func WithRetry(ctx context.Context, cb *CircuitBreaker, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := policy.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cb != nil {
			err = cb.Execute(fn)
		} else {
			err = fn()
		}
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("persistence: transient failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// Guard bundles the breaker and retry policy applied to every repository call.
// A nil *Guard runs calls directly.
type Guard struct {
	cb     *CircuitBreaker
	policy RetryPolicy
}

// NewDBGuard builds the guard for the database boundary. Only transient
// errors count against the breaker.
func NewDBGuard(policy RetryPolicy) *Guard {
	cfg := DefaultCBConfig("database")
	cfg.IsFailure = IsTransient
	return &Guard{cb: NewCircuitBreaker(cfg), policy: policy}
}

// Run executes fn under the guard.
func (g *Guard) Run(ctx context.Context, fn func() error) error {
	if g == nil {
		return fn()
	}
	return WithRetry(ctx, g.cb, g.policy, fn)
}

// Breaker exposes the circuit breaker for health reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	if g == nil {
		return nil
	}
	return g.cb
}
