package worker

// dlq.go: dead letter queue for outbox events that exhausted their delivery
// attempts. One Redis list per publish queue: dlq:{queue}.

import (
	"context"
	"encoding/json"
	"time"

	"cashregister/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a dead event with the failure metadata.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SessionID     string          `json:"session_id"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
	Attempts      int             `json:"attempts"`
}

// SendToDLQ pushes a dead event to the queue's DLQ. A nil client means Redis
// is not configured; the event then stays only in the outbox table, marked
// dead.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, ev model.OutboxEvent, reason string, at time.Time) error {
	if rdb == nil {
		return nil
	}
	entry := DLQEntry{
		OriginalQueue: queue,
		EventID:       ev.ID.String(),
		EventType:     ev.Type,
		SessionID:     ev.SessionID.String(),
		Payload:       json.RawMessage(ev.Payload),
		Reason:        reason,
		FailedAt:      at.UTC().Format(time.RFC3339),
		Attempts:      ev.Attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		return err
	}

	log.Warn().
		Str("dlq_key", dlqKey).
		Str("event_id", entry.EventID).
		Str("event_type", ev.Type).
		Int("attempts", ev.Attempts).
		Str("reason", reason).
		Msg("dlq: event moved to dead letter queue")
	return nil
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
