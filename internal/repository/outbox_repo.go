package repository

import (
	"context"
	"time"

	"cashregister/internal/infra"
	"cashregister/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxRepository is read by the relay worker. Events are inserted by
// RegisterRepository inside the state-change transaction.
type OutboxRepository interface {
	ListPending(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt *time.Time, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, at time.Time, lastError string) error
	CountPending(ctx context.Context) (int64, error)
}

type outboxRepo struct {
	db    *gorm.DB
	guard *infra.Guard
}

func NewOutboxRepository(db *gorm.DB, guard *infra.Guard) OutboxRepository {
	return &outboxRepo{db: db, guard: guard}
}

func (r *outboxRepo) pending(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("published_at IS NULL AND dead_at IS NULL")
}

func (r *outboxRepo) ListPending(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.guard.Run(ctx, func() error {
		return r.pending(ctx).
			Where("next_attempt_at <= ?", now.UTC()).
			Order("created_at ASC").
			Limit(limit).
			Find(&events).Error
	})
	return events, err
}

func (r *outboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]any{"published_at": at.UTC(), "next_attempt_at": nil}).Error
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt *time.Time, lastError string) error {
	return r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"attempts":        attempts,
				"next_attempt_at": nextAttemptAt,
				"last_error":      lastError,
			}).Error
	})
}

func (r *outboxRepo) MarkDead(ctx context.Context, id uuid.UUID, attempts int, at time.Time, lastError string) error {
	return r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"attempts":        attempts,
				"dead_at":         at.UTC(),
				"next_attempt_at": nil,
				"last_error":      lastError,
			}).Error
	})
}

func (r *outboxRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.guard.Run(ctx, func() error {
		return r.pending(ctx).Count(&n).Error
	})
	return n, err
}
