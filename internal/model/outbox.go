package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types written to the outbox.
const (
	EventRegisterOpened = "register.opened"
	EventRegisterClosed = "register.closed"
	EventEntryRecorded  = "entry.recorded"
	EventEntryCancelled = "entry.cancelled"
)

// OutboxEvent is a state-change notification written in the same transaction
// as the change itself and relayed to the broker by the outbox worker.
type OutboxEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Type          string     `gorm:"type:varchar(40);not null"`
	SessionID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Payload       string     `gorm:"type:text;not null"`
	Attempts      int        `gorm:"not null;default:0"`
	NextAttemptAt *time.Time `gorm:"index"`
	PublishedAt   *time.Time
	DeadAt        *time.Time
	LastError     *string
	CreatedAt     time.Time `gorm:"not null;index"`
}

func (OutboxEvent) TableName() string { return "register_outbox" }

// NewOutboxEvent builds an unpublished event with a JSON payload.
func NewOutboxEvent(eventType string, sessionID uuid.UUID, payload any, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:            uuid.New(),
		Type:          eventType,
		SessionID:     sessionID,
		Payload:       string(data),
		NextAttemptAt: &now,
		CreatedAt:     now,
	}, nil
}
