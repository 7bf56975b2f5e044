package service

import (
	"time"

	"cashregister/internal/dto"
	"cashregister/internal/model"
	"cashregister/internal/reconcile"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func optTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func optUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toEntryResponse(e model.LedgerEntry, cancelledBy *uuid.UUID) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:                 e.ID.String(),
		SessionID:          e.SessionID.String(),
		Seq:                e.Seq,
		Kind:               string(e.Kind),
		Amount:             e.Amount.Decimal(),
		Method:             string(e.Method),
		CashEquivalent:     e.Method.IsCashEquivalent(),
		RecordedAt:         formatTime(e.RecordedAt),
		RecordedBy:         e.RecordedBy.String(),
		ReferenceID:        e.ReferenceID,
		CancelsEntryID:     optUUID(e.CancelsEntryID),
		CancelledByEntryID: optUUID(cancelledBy),
	}
	if e.Details.Details != nil {
		resp.Details = e.Details.Details
	}
	return resp
}

func toMethodTotals(entries []model.LedgerEntry) dto.MethodTotals {
	totals := reconcile.TotalsByMethod(entries)
	out := make(dto.MethodTotals, len(totals))
	for m, c := range totals {
		out[string(m)] = c.Decimal()
	}
	return out
}

func toReconciliation(r reconcile.Result) dto.ReconciliationResponse {
	return dto.ReconciliationResponse{
		ExpectedBalance:        r.ExpectedBalance.Decimal(),
		DeclaredClosingBalance: r.DeclaredClosingBalance.Decimal(),
		Difference:             r.Difference.Decimal(),
		Classification:         string(r.Classification),
	}
}

// storedReconciliation rebuilds the close-time snapshot of a closed session.
func storedReconciliation(s *model.RegisterSession) *dto.ReconciliationResponse {
	if s.ClosingBalanceDeclared == nil || s.ExpectedBalance == nil || s.Difference == nil || s.Classification == nil {
		return nil
	}
	r := toReconciliation(reconcile.Result{
		ExpectedBalance:        *s.ExpectedBalance,
		DeclaredClosingBalance: *s.ClosingBalanceDeclared,
		Difference:             *s.Difference,
		Classification:         *s.Classification,
	})
	return &r
}

// toSessionResponse maps a session. Entries are included when withEntries is
// set; totals and the current balance are always derived from s.Entries.
func toSessionResponse(s *model.RegisterSession, withEntries bool) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:                s.ID.String(),
		Status:            string(s.Status),
		OpeningBalance:    s.OpeningBalance.Decimal(),
		CurrentBalance:    reconcile.SessionExpectedBalance(s).Decimal(),
		OpenedAt:          formatTime(s.OpenedAt),
		OpenedBy:          s.OpenedBy.String(),
		ClosedAt:          optTime(s.ClosedAt),
		ClosedBy:          optUUID(s.ClosedBy),
		ObservationsOpen:  s.ObservationsOpen,
		ObservationsClose: s.ObservationsClose,
		EntryCount:        s.EntryCount,
		TotalsByMethod:    toMethodTotals(s.Entries),
	}
	if !s.IsOpen() {
		resp.Reconciliation = storedReconciliation(s)
	}
	if withEntries {
		cancelledBy := make(map[uuid.UUID]uuid.UUID)
		for _, e := range s.Entries {
			if e.CancelsEntryID != nil {
				cancelledBy[*e.CancelsEntryID] = e.ID
			}
		}
		resp.Entries = make([]dto.EntryResponse, 0, len(s.Entries))
		for _, e := range s.Entries {
			var by *uuid.UUID
			if id, ok := cancelledBy[e.ID]; ok {
				by = &id
			}
			resp.Entries = append(resp.Entries, toEntryResponse(e, by))
		}
	}
	return resp
}

// ── Outbox payloads ───────────────────────────────────────────────────────────
// Amounts are published in cents so consumers never parse decimals.

type sessionOpenedPayload struct {
	SessionID           string `json:"session_id"`
	OpeningBalanceCents int64  `json:"opening_balance_cents"`
	OpenedBy            string `json:"opened_by"`
	OpenedAt            string `json:"opened_at"`
}

type sessionClosedPayload struct {
	SessionID            string `json:"session_id"`
	ExpectedBalanceCents int64  `json:"expected_balance_cents"`
	DeclaredBalanceCents int64  `json:"declared_balance_cents"`
	DifferenceCents      int64  `json:"difference_cents"`
	Classification       string `json:"classification"`
	ClosedBy             string `json:"closed_by"`
	ClosedAt             string `json:"closed_at"`
}

type entryPayload struct {
	EntryID        string  `json:"entry_id"`
	SessionID      string  `json:"session_id"`
	Seq            int     `json:"seq"`
	Kind           string  `json:"kind"`
	AmountCents    int64   `json:"amount_cents"`
	Method         string  `json:"method"`
	ReferenceID    *string `json:"reference_id,omitempty"`
	CancelsEntryID *string `json:"cancels_entry_id,omitempty"`
	RecordedBy     string  `json:"recorded_by"`
	RecordedAt     string  `json:"recorded_at"`
}

func newEntryPayload(e *model.LedgerEntry) entryPayload {
	return entryPayload{
		EntryID:        e.ID.String(),
		SessionID:      e.SessionID.String(),
		Seq:            e.Seq,
		Kind:           string(e.Kind),
		AmountCents:    int64(e.Amount),
		Method:         string(e.Method),
		ReferenceID:    e.ReferenceID,
		CancelsEntryID: optUUID(e.CancelsEntryID),
		RecordedBy:     e.RecordedBy.String(),
		RecordedAt:     formatTime(e.RecordedAt),
	}
}
