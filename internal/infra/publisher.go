package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cashregister/internal/model"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventPublisher delivers outbox events to downstream consumers (reporting,
// notifications). Delivery is at-least-once; consumers dedupe on ID.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.OutboxEvent) error
	Close() error
}

// EventMessage is the wire envelope shared by every backend.
type EventMessage struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	SessionID uuid.UUID       `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func encodeEvent(ev model.OutboxEvent) ([]byte, error) {
	return json.Marshal(EventMessage{
		ID:        ev.ID,
		Type:      ev.Type,
		SessionID: ev.SessionID,
		Payload:   json.RawMessage(ev.Payload),
		CreatedAt: ev.CreatedAt,
	})
}

// ── Redis ─────────────────────────────────────────────────────────────────────

// RedisPublisher pushes events onto a Redis list consumed with BRPOP.
type RedisPublisher struct {
	rdb   *redis.Client
	queue string
}

func NewRedisPublisher(rdb *redis.Client, queue string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, queue: queue}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.OutboxEvent) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return p.rdb.LPush(ctx, p.queue, data).Err()
}

// Close is a no-op; the client is owned by the composition root.
func (p *RedisPublisher) Close() error { return nil }

// ── RabbitMQ ──────────────────────────────────────────────────────────────────

// AMQPPublisher publishes persistent messages to a durable queue through the
// default exchange.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher dials the broker and declares the queue (idempotent).
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev model.OutboxEvent) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Type:         ev.Type,
			Timestamp:    time.Now().UTC(),
			Body:         data,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

// ── Log only ──────────────────────────────────────────────────────────────────

// LogPublisher is used when EVENTS_BACKEND=none: events are logged and
// considered delivered.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev model.OutboxEvent) error {
	log.Debug().
		Str("event_id", ev.ID.String()).
		Str("type", ev.Type).
		Str("session_id", ev.SessionID.String()).
		Msg("outbox: event (no broker configured)")
	return nil
}

func (LogPublisher) Close() error { return nil }
