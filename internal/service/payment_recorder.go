package service

import (
	"context"
	"errors"
	"time"

	"cashregister/internal/dto"
	"cashregister/internal/model"
	"cashregister/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PaymentRecorder appends entries to the open register session. There is no
// update or delete operation: corrections are offsetting entries.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, actor uuid.UUID, req dto.RecordPaymentRequest) (*dto.EntryResponse, error)
	RecordCancellation(ctx context.Context, actor, entryID uuid.UUID) (*dto.EntryResponse, error)
}

type paymentRecorder struct {
	repo   repository.RegisterRepository
	actors ActorVerifier
	now    func() time.Time
}

func NewPaymentRecorder(repo repository.RegisterRepository, actors ActorVerifier) PaymentRecorder {
	return &paymentRecorder{repo: repo, actors: actors, now: utcNow}
}

// ── RecordPayment ─────────────────────────────────────────────────────────────

func (p *paymentRecorder) RecordPayment(ctx context.Context, actor uuid.UUID, req dto.RecordPaymentRequest) (*dto.EntryResponse, error) {
	if _, err := p.actors.Verify(ctx, actor); err != nil {
		return nil, err
	}
	entry, err := p.buildEntry(actor, req)
	if err != nil {
		return nil, err
	}

	if req.SessionID != nil {
		sessionID, err := uuid.Parse(*req.SessionID)
		if err != nil {
			return nil, validationErr("session_id is not a valid UUID")
		}
		if err := p.appendTo(ctx, sessionID, entry, model.EventEntryRecorded); err != nil {
			return nil, sessionLockError(sessionID, err)
		}
	} else if err := p.appendToCurrent(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", entry.SessionID.String()).
		Str("entry_id", entry.ID.String()).
		Int("seq", entry.Seq).
		Str("kind", string(entry.Kind)).
		Str("method", string(entry.Method)).
		Int64("amount_cents", int64(entry.Amount)).
		Str("actor", actor.String()).
		Msg("register: entry recorded")

	resp := toEntryResponse(*entry, nil)
	return &resp, nil
}

func (p *paymentRecorder) buildEntry(actor uuid.UUID, req dto.RecordPaymentRequest) (*model.LedgerEntry, error) {
	kind, ok := model.ParseEntryKind(req.Kind)
	if !ok {
		return nil, validationErr("unknown entry kind %q", req.Kind)
	}
	if kind == model.KindCancellation {
		return nil, validationErr("cancellations are recorded through the cancel operation")
	}
	method, ok := model.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, validationErr("unknown payment method %q", req.Method)
	}
	amount, err := toCents("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if !kind.SignValid(amount) {
		if kind == model.KindExpense {
			return nil, validationErr("expense amount must be negative")
		}
		return nil, validationErr("%s amount must be positive", kind)
	}
	details, err := model.DecodePaymentDetails(method, req.Details)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Msg: "invalid payment details", Err: err}
	}

	return &model.LedgerEntry{
		ID:          uuid.New(),
		Kind:        kind,
		Amount:      amount,
		Method:      method,
		Details:     model.DetailsColumn{Details: details},
		RecordedBy:  actor,
		ReferenceID: cleanText(req.ReferenceID),
	}, nil
}

// appendToCurrent resolves the open session and appends to it. If that
// session closes between the lookup and the lock, the lookup is repeated
// once so a payment lands in a session opened in the meantime.
func (p *paymentRecorder) appendToCurrent(ctx context.Context, entry *model.LedgerEntry) error {
	for attempt := 0; attempt < 2; attempt++ {
		session, err := p.repo.FindOpenSession(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNoOpenSession, "no register session is open")
		}
		if err != nil {
			return err
		}
		err = p.appendTo(ctx, session.ID, entry, model.EventEntryRecorded)
		if errors.Is(err, repository.ErrSessionClosed) || errors.Is(err, repository.ErrNotFound) {
			continue
		}
		return err
	}
	return newError(KindNoOpenSession, "no register session is open")
}

func (p *paymentRecorder) appendTo(ctx context.Context, sessionID uuid.UUID, entry *model.LedgerEntry, eventType string) error {
	return p.repo.WithOpenSession(ctx, sessionID, func(tx repository.SessionTx, _ *model.RegisterSession) error {
		// Stamped under the session lock so recorded_at follows seq and
		// never passes the session's closed_at.
		entry.RecordedAt = p.now()
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		ev, err := model.NewOutboxEvent(eventType, sessionID, newEntryPayload(entry), entry.RecordedAt)
		if err != nil {
			return err
		}
		return tx.Enqueue(ev)
	})
}

// ── RecordCancellation ────────────────────────────────────────────────────────
// Only entries of the currently open session can be cancelled. Refunds for a
// closed session are new expense entries in a later session.

func (p *paymentRecorder) RecordCancellation(ctx context.Context, actor, entryID uuid.UUID) (*dto.EntryResponse, error) {
	if _, err := p.actors.Verify(ctx, actor); err != nil {
		return nil, err
	}
	orig, err := p.repo.FindEntryByID(ctx, entryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "entry %s not found", entryID)
	}
	if err != nil {
		return nil, err
	}
	if orig.Kind == model.KindCancellation {
		return nil, validationErr("a cancellation entry cannot be cancelled")
	}

	cancellation := &model.LedgerEntry{
		ID:             uuid.New(),
		Kind:           model.KindCancellation,
		Amount:         -orig.Amount,
		Method:         orig.Method,
		RecordedBy:     actor,
		ReferenceID:    orig.ReferenceID,
		CancelsEntryID: &orig.ID,
	}

	err = p.repo.WithOpenSession(ctx, orig.SessionID, func(tx repository.SessionTx, session *model.RegisterSession) error {
		for _, e := range session.Entries {
			if e.CancelsEntryID != nil && *e.CancelsEntryID == orig.ID {
				return repository.ErrAlreadyCancelled
			}
		}
		cancellation.RecordedAt = p.now()
		if err := tx.AppendEntry(cancellation); err != nil {
			return err
		}
		ev, err := model.NewOutboxEvent(model.EventEntryCancelled, session.ID, newEntryPayload(cancellation), cancellation.RecordedAt)
		if err != nil {
			return err
		}
		return tx.Enqueue(ev)
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyCancelled):
		return nil, &Error{Kind: KindAlreadyCancelled, Msg: "entry " + entryID.String() + " is already cancelled", Err: err}
	case errors.Is(err, repository.ErrSessionClosed), errors.Is(err, repository.ErrNotFound):
		return nil, &Error{Kind: KindNotFound, Msg: "entry " + entryID.String() + " is not in the open register session", Err: err}
	default:
		return nil, err
	}

	log.Info().
		Str("session_id", cancellation.SessionID.String()).
		Str("entry_id", cancellation.ID.String()).
		Str("cancels_entry_id", entryID.String()).
		Int64("amount_cents", int64(cancellation.Amount)).
		Str("actor", actor.String()).
		Msg("register: entry cancelled")

	resp := toEntryResponse(*cancellation, nil)
	return &resp, nil
}
