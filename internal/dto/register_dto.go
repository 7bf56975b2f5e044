package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money amounts cross the API in major units (e.g. "125.50"); the service
// converts them to integer cents exactly once.

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenRegisterRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0"`
	Observations   *string         `json:"observations"    validate:"omitempty,max=500"`
}

type CloseRegisterRequest struct {
	DeclaredClosingBalance decimal.Decimal `json:"declared_closing_balance" validate:"min=0"`
	Observations           *string         `json:"observations"             validate:"omitempty,max=500"`
}

type RecordPaymentRequest struct {
	// SessionID optionally pins the payment to the session the client
	// believes is open; a mismatch is rejected instead of silently
	// recording into a different session.
	SessionID   *string         `json:"session_id"   validate:"omitempty,uuid"`
	Kind        string          `json:"kind"         validate:"required"`
	Amount      decimal.Decimal `json:"amount"       validate:"required"`
	Method      string          `json:"method"       validate:"required"`
	ReferenceID *string         `json:"reference_id" validate:"omitempty,min=1,max=64"`
	Details     json.RawMessage `json:"details,omitempty"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type EntryResponse struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	Seq                int             `json:"seq"`
	Kind               string          `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	Method             string          `json:"method"`
	CashEquivalent     bool            `json:"cash_equivalent"`
	Details            any             `json:"details,omitempty"`
	RecordedAt         string          `json:"recorded_at"`
	RecordedBy         string          `json:"recorded_by"`
	ReferenceID        *string         `json:"reference_id,omitempty"`
	CancelsEntryID     *string         `json:"cancels_entry_id,omitempty"`
	CancelledByEntryID *string         `json:"cancelled_by_entry_id,omitempty"`
}

type ReconciliationResponse struct {
	ExpectedBalance        decimal.Decimal `json:"expected_balance"`
	DeclaredClosingBalance decimal.Decimal `json:"declared_closing_balance"`
	Difference             decimal.Decimal `json:"difference"`
	Classification         string          `json:"classification"` // exact | shortage | surplus
}

// MethodTotals maps payment method to its net total in major units.
type MethodTotals map[string]decimal.Decimal

type SessionResponse struct {
	ID                string                  `json:"id"`
	Status            string                  `json:"status"`
	OpeningBalance    decimal.Decimal         `json:"opening_balance"`
	CurrentBalance    decimal.Decimal         `json:"current_balance"`
	OpenedAt          string                  `json:"opened_at"`
	OpenedBy          string                  `json:"opened_by"`
	ClosedAt          *string                 `json:"closed_at"`
	ClosedBy          *string                 `json:"closed_by"`
	ObservationsOpen  *string                 `json:"observations_open"`
	ObservationsClose *string                 `json:"observations_close"`
	EntryCount        int                     `json:"entry_count"`
	TotalsByMethod    MethodTotals            `json:"totals_by_method"`
	Entries           []EntryResponse         `json:"entries,omitempty"`
	Reconciliation    *ReconciliationResponse `json:"reconciliation"`
}

type CurrentRegisterResponse struct {
	IsOpen  bool             `json:"is_open"`
	Session *SessionResponse `json:"session,omitempty"`
}

type CloseRegisterResponse struct {
	SessionID      string                 `json:"session_id"`
	Status         string                 `json:"status"`
	ClosedAt       string                 `json:"closed_at"`
	Reconciliation ReconciliationResponse `json:"reconciliation"`
	TotalsByMethod MethodTotals           `json:"totals_by_method"`
}

type SessionListResponse struct {
	Data  []SessionResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardResponse struct {
	Date           string          `json:"date"`
	TodayTotal     decimal.Decimal `json:"today_total"`
	YesterdayTotal decimal.Decimal `json:"yesterday_total"`
	GrowthPct      decimal.Decimal `json:"growth_pct"`
	WeeklyCounts   []DailyCount    `json:"weekly_counts"`
	Recent         []EntryResponse `json:"recent"`
}
