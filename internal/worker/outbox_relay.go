package worker

// outbox_relay.go
// Background goroutine that drains register_outbox: every tick it publishes
// due events in creation order through the configured broker. The broker
// sits behind a circuit breaker so a dead broker is skipped, not hammered.

import (
	"context"
	"time"

	"cashregister/internal/infra"
	"cashregister/internal/model"
	"cashregister/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxRelayBackoff = 10 * time.Minute

// RelayConfig holds all dependencies for the relay goroutine.
type RelayConfig struct {
	Outbox      repository.OutboxRepository
	Publisher   infra.EventPublisher
	CB          *infra.CircuitBreaker
	RDB         *redis.Client // optional: DLQ target
	Queue       string
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Relay publishes outbox events.
type Relay struct {
	cfg RelayConfig
	now func() time.Time
}

func NewRelay(cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.CB == nil {
		cfg.CB = infra.NewCircuitBreaker(infra.DefaultCBConfig("broker"))
	}
	return &Relay{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Start launches the ticker goroutine. It stops when ctx is cancelled; the
// returned channel is closed once it has.
func (r *Relay) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", r.cfg.Interval).Str("queue", r.cfg.Queue).Msg("outbox_relay: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("outbox_relay: shutting down")
				return
			case <-ticker.C:
				if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("outbox_relay: batch failed")
				}
			}
		}
	}()
	return done
}

// ProcessBatch publishes one batch of due events and returns how many were
// published.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	if r.cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("outbox_relay: circuit breaker is open, skipping tick")
		return 0, nil
	}

	events, err := r.cfg.Outbox.ListPending(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range events {
		ev := events[i]

		// Check CB state before each call; it may have tripped mid-batch.
		if r.cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("outbox_relay: circuit breaker opened mid-batch, stopping")
			return published, nil
		}

		pubErr := r.cfg.CB.Execute(func() error {
			return r.cfg.Publisher.Publish(ctx, ev)
		})
		if pubErr == nil {
			if err := r.cfg.Outbox.MarkPublished(ctx, ev.ID, r.now()); err != nil {
				return published, err
			}
			published++
			continue
		}

		if err := r.fail(ctx, ev, pubErr); err != nil {
			return published, err
		}
		// One failure ends the batch; the broker is probed again next tick.
		return published, nil
	}
	return published, nil
}

func (r *Relay) fail(ctx context.Context, ev model.OutboxEvent, pubErr error) error {
	ev.Attempts++
	msg := pubErr.Error()
	now := r.now()

	if ev.Attempts >= r.cfg.MaxAttempts {
		log.Error().
			Str("event_id", ev.ID.String()).
			Str("type", ev.Type).
			Int("attempts", ev.Attempts).
			Err(pubErr).
			Msg("outbox_relay: max attempts exceeded, moving to dead letter")
		if err := r.cfg.Outbox.MarkDead(ctx, ev.ID, ev.Attempts, now, msg); err != nil {
			return err
		}
		if err := SendToDLQ(ctx, r.cfg.RDB, r.cfg.Queue, ev, msg, now); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("outbox_relay: failed to push to DLQ")
		}
		return nil
	}

	next := now.Add(computeRelayBackoff(ev.Attempts))
	log.Warn().
		Str("event_id", ev.ID.String()).
		Int("attempts", ev.Attempts).
		Time("next_attempt_at", next).
		Err(pubErr).
		Msg("outbox_relay: publish failed, scheduled next attempt")
	return r.cfg.Outbox.MarkFailed(ctx, ev.ID, ev.Attempts, &next, msg)
}

// computeRelayBackoff doubles from 5s per attempt, capped at 10 minutes.
func computeRelayBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := 5 * time.Second
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxRelayBackoff {
			return maxRelayBackoff
		}
	}
	return d
}
