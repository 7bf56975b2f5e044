package repository

import (
	"context"
	"time"

	"cashregister/internal/infra"
	"cashregister/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegisterRepository is the persistence boundary for register sessions and
// their ledger. Entries have no update or delete path.
type RegisterRepository interface {
	// CreateSession inserts an open session. The partial unique index on
	// status='open' makes the check and the write a single statement;
	// a duplicate returns ErrOpenSessionExists.
	CreateSession(ctx context.Context, s *model.RegisterSession, events ...*model.OutboxEvent) error
	FindOpenSession(ctx context.Context) (*model.RegisterSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error)
	FindEntryByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error)
	ListEntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error)
	// WithOpenSession locks the session row, loads it with its entries and
	// runs fn in the same transaction. Returns ErrNotFound or
	// ErrSessionClosed without calling fn when the session is not open.
	WithOpenSession(ctx context.Context, id uuid.UUID, fn func(tx SessionTx, s *model.RegisterSession) error) error
}

// SessionTx is the set of writes allowed while holding a session lock.
type SessionTx interface {
	AppendEntry(e *model.LedgerEntry) error
	Close(s *model.RegisterSession) error
	Enqueue(ev *model.OutboxEvent) error
}

type registerRepo struct {
	db    *gorm.DB
	guard *infra.Guard
}

func NewRegisterRepository(db *gorm.DB, guard *infra.Guard) RegisterRepository {
	return &registerRepo{db: db, guard: guard}
}

func bySeq(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }

func (r *registerRepo) CreateSession(ctx context.Context, s *model.RegisterSession, events ...*model.OutboxEvent) error {
	return r.guard.Run(ctx, func() error {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Entries").Create(s).Error; err != nil {
				return err
			}
			for _, ev := range events {
				if err := tx.Create(ev).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if isUniqueViolation(err) {
			return ErrOpenSessionExists
		}
		return err
	})
}

func (r *registerRepo) FindOpenSession(ctx context.Context) (*model.RegisterSession, error) {
	var s model.RegisterSession
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).
			Preload("Entries", bySeq).
			Where("status = ?", model.SessionOpen).
			First(&s).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *registerRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	var s model.RegisterSession
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Preload("Entries", bySeq).First(&s, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *registerRepo) FindEntryByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *registerRepo) ListSessions(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error) {
	var sessions []model.RegisterSession
	var total int64
	err := r.guard.Run(ctx, func() error {
		q := r.db.WithContext(ctx).Model(&model.RegisterSession{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("opened_at DESC").
			Offset((page - 1) * limit).Limit(limit).
			Find(&sessions).Error
	})
	return sessions, total, err
}

func (r *registerRepo) ListEntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).
			Where("recorded_at >= ?", since.UTC()).
			Order("recorded_at ASC").Order("seq ASC").
			Find(&entries).Error
	})
	return entries, err
}

func (r *registerRepo) WithOpenSession(ctx context.Context, id uuid.UUID, fn func(tx SessionTx, s *model.RegisterSession) error) error {
	return r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Conditional no-op write: takes the row lock (Postgres) or the
			// write lock (SQLite) before anything is read, so concurrent
			// appends and close queue up here.
			res := tx.Model(&model.RegisterSession{}).
				Where("id = ? AND status = ?", id, model.SessionOpen).
				Update("entry_count", gorm.Expr("entry_count"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&model.RegisterSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return ErrNotFound
				}
				return ErrSessionClosed
			}

			var s model.RegisterSession
			if err := tx.Preload("Entries", bySeq).First(&s, "id = ?", id).Error; err != nil {
				return err
			}
			return fn(&sessionTx{tx: tx, session: &s}, &s)
		})
	})
}

// ── SessionTx ─────────────────────────────────────────────────────────────────

type sessionTx struct {
	tx      *gorm.DB
	session *model.RegisterSession
}

func (t *sessionTx) AppendEntry(e *model.LedgerEntry) error {
	next := t.session.EntryCount + 1
	e.SessionID = t.session.ID
	e.Seq = next
	if err := t.tx.Create(e).Error; err != nil {
		if e.CancelsEntryID != nil && isUniqueViolation(err) {
			return ErrAlreadyCancelled
		}
		return err
	}
	if err := t.tx.Model(&model.RegisterSession{}).
		Where("id = ?", t.session.ID).
		Update("entry_count", next).Error; err != nil {
		return err
	}
	t.session.EntryCount = next
	t.session.Entries = append(t.session.Entries, *e)
	return nil
}

func (t *sessionTx) Close(s *model.RegisterSession) error {
	updates := map[string]any{
		"status":             model.SessionClosed,
		"closed_at":          s.ClosedAt,
		"closed_by":          s.ClosedBy,
		"observations_close": s.ObservationsClose,
	}
	if s.ClosingBalanceDeclared != nil {
		updates["closing_balance_declared_cents"] = int64(*s.ClosingBalanceDeclared)
	}
	if s.ExpectedBalance != nil {
		updates["expected_balance_cents"] = int64(*s.ExpectedBalance)
	}
	if s.Difference != nil {
		updates["difference_cents"] = int64(*s.Difference)
	}
	if s.Classification != nil {
		updates["classification"] = string(*s.Classification)
	}
	res := t.tx.Model(&model.RegisterSession{}).
		Where("id = ? AND status = ?", s.ID, model.SessionOpen).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrSessionClosed
	}
	s.Status = model.SessionClosed
	return nil
}

func (t *sessionTx) Enqueue(ev *model.OutboxEvent) error {
	return t.tx.Create(ev).Error
}
