package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cashregister/internal/dto"
	"cashregister/internal/model"
	"cashregister/internal/reconcile"
	"cashregister/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type RegisterService interface {
	Open(ctx context.Context, actor uuid.UUID, req dto.OpenRegisterRequest) (*dto.SessionResponse, error)
	Close(ctx context.Context, actor, sessionID uuid.UUID, req dto.CloseRegisterRequest) (*dto.CloseRegisterResponse, error)
	Current(ctx context.Context) (*dto.CurrentRegisterResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error)
}

type registerService struct {
	repo   repository.RegisterRepository
	actors ActorVerifier
	now    func() time.Time
}

func NewRegisterService(repo repository.RegisterRepository, actors ActorVerifier) RegisterService {
	return &registerService{repo: repo, actors: actors, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *registerService) Open(ctx context.Context, actor uuid.UUID, req dto.OpenRegisterRequest) (*dto.SessionResponse, error) {
	if _, err := s.actors.Verify(ctx, actor); err != nil {
		return nil, err
	}
	opening, err := nonNegativeCents("opening_balance", req.OpeningBalance)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.RegisterSession{
		ID:               uuid.New(),
		Status:           model.SessionOpen,
		OpeningBalance:   opening,
		OpenedAt:         now,
		OpenedBy:         actor,
		ObservationsOpen: cleanText(req.Observations),
	}
	ev, err := model.NewOutboxEvent(model.EventRegisterOpened, session.ID, sessionOpenedPayload{
		SessionID:           session.ID.String(),
		OpeningBalanceCents: int64(opening),
		OpenedBy:            actor.String(),
		OpenedAt:            formatTime(now),
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateSession(ctx, session, ev); err != nil {
		if errors.Is(err, repository.ErrOpenSessionExists) {
			return nil, &Error{Kind: KindConflict, Msg: "a register session is already open", Err: err}
		}
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("actor", actor.String()).
		Int64("opening_balance_cents", int64(opening)).
		Msg("register: session opened")

	resp := toSessionResponse(session, true)
	return &resp, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Blind count: the expected balance is computed only after the declaration
// arrives, inside the same lock that flips the session to closed.

func (s *registerService) Close(ctx context.Context, actor, sessionID uuid.UUID, req dto.CloseRegisterRequest) (*dto.CloseRegisterResponse, error) {
	if _, err := s.actors.Verify(ctx, actor); err != nil {
		return nil, err
	}
	declared, err := nonNegativeCents("declared_closing_balance", req.DeclaredClosingBalance)
	if err != nil {
		return nil, err
	}

	var (
		result  reconcile.Result
		closed  *model.RegisterSession
		closeAt time.Time
	)
	err = s.repo.WithOpenSession(ctx, sessionID, func(tx repository.SessionTx, session *model.RegisterSession) error {
		// Taken under the lock: every entry appended before us is older.
		closeAt = s.now()
		result = reconcile.Reconcile(session, declared)

		session.ClosedAt = &closeAt
		session.ClosedBy = &actor
		session.ObservationsClose = cleanText(req.Observations)
		session.ClosingBalanceDeclared = &result.DeclaredClosingBalance
		session.ExpectedBalance = &result.ExpectedBalance
		session.Difference = &result.Difference
		session.Classification = &result.Classification
		if err := tx.Close(session); err != nil {
			return err
		}

		ev, err := model.NewOutboxEvent(model.EventRegisterClosed, session.ID, sessionClosedPayload{
			SessionID:            session.ID.String(),
			ExpectedBalanceCents: int64(result.ExpectedBalance),
			DeclaredBalanceCents: int64(result.DeclaredClosingBalance),
			DifferenceCents:      int64(result.Difference),
			Classification:       string(result.Classification),
			ClosedBy:             actor.String(),
			ClosedAt:             formatTime(closeAt),
		}, closeAt)
		if err != nil {
			return err
		}
		closed = session
		return tx.Enqueue(ev)
	})
	if err != nil {
		return nil, sessionLockError(sessionID, err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("actor", actor.String()).
		Int64("expected_cents", int64(result.ExpectedBalance)).
		Int64("declared_cents", int64(result.DeclaredClosingBalance)).
		Int64("difference_cents", int64(result.Difference)).
		Str("classification", string(result.Classification)).
		Msg("register: session closed")

	return &dto.CloseRegisterResponse{
		SessionID:      sessionID.String(),
		Status:         string(model.SessionClosed),
		ClosedAt:       formatTime(closeAt),
		Reconciliation: toReconciliation(result),
		TotalsByMethod: toMethodTotals(closed.Entries),
	}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *registerService) Current(ctx context.Context) (*dto.CurrentRegisterResponse, error) {
	session, err := s.repo.FindOpenSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return &dto.CurrentRegisterResponse{IsOpen: false}, nil
	}
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(session, true)
	return &dto.CurrentRegisterResponse{IsOpen: true, Session: &resp}, nil
}

func (s *registerService) GetByID(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "register session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(session, true)
	return &resp, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// History lists sessions newest first without their entries.
func (s *registerService) History(ctx context.Context, page, limit int) (*dto.SessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	sessions, total, err := s.repo.ListSessions(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		data = append(data, toSessionResponse(&sessions[i], false))
	}
	return &dto.SessionListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func toCents(field string, d decimal.Decimal) (model.Cents, error) {
	c, err := model.CentsFromDecimal(d)
	switch {
	case errors.Is(err, model.ErrAmountOutOfRange):
		return 0, &Error{Kind: KindValidation, Msg: field + " must not exceed " + model.MaxCents.String() + " in magnitude", Err: err}
	case err != nil:
		return 0, &Error{Kind: KindValidation, Msg: field + " must have at most two decimal places", Err: err}
	}
	return c, nil
}

func nonNegativeCents(field string, d decimal.Decimal) (model.Cents, error) {
	c, err := toCents(field, d)
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, validationErr("%s must not be negative", field)
	}
	return c, nil
}

func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// sessionLockError maps repository failures from WithOpenSession on an
// explicitly addressed session.
func sessionLockError(id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindNotFound, "register session %s not found", id)
	case errors.Is(err, repository.ErrSessionClosed):
		return &Error{Kind: KindInvalidState, Msg: "register session " + id.String() + " is already closed", Err: err}
	}
	return err
}
