package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a register session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	KindSale         EntryKind = "sale"
	KindExpense      EntryKind = "expense"
	KindDebtPayment  EntryKind = "debt_payment"
	KindCancellation EntryKind = "cancellation"
)

// ParseEntryKind validates a wire value.
func ParseEntryKind(s string) (EntryKind, bool) {
	switch k := EntryKind(s); k {
	case KindSale, KindExpense, KindDebtPayment, KindCancellation:
		return k, true
	}
	return "", false
}

// SignValid reports whether amount carries the sign required by the kind.
// Cancellations are checked against their original entry instead.
func (k EntryKind) SignValid(amount Cents) bool {
	switch k {
	case KindSale, KindDebtPayment:
		return amount > 0
	case KindExpense:
		return amount < 0
	case KindCancellation:
		return amount != 0
	}
	return false
}

// PaymentMethod tags how money moved.
type PaymentMethod string

const (
	MethodCash           PaymentMethod = "cash"
	MethodCard           PaymentMethod = "card"
	MethodPix            PaymentMethod = "pix"
	MethodCheck          PaymentMethod = "check"
	MethodBankSlip       PaymentMethod = "bank_slip"
	MethodPromissoryNote PaymentMethod = "promissory_note"
	MethodGateway        PaymentMethod = "gateway"
)

// cashEquivalent is the single source of truth for which methods change the
// physical cash in the till. Reconciliation and reporting both read it.
var cashEquivalent = map[PaymentMethod]bool{
	MethodCash:           true,
	MethodCard:           false,
	MethodPix:            false,
	MethodCheck:          false,
	MethodBankSlip:       false,
	MethodPromissoryNote: false,
	MethodGateway:        false,
}

// PaymentMethods lists every known method in a stable order.
var PaymentMethods = []PaymentMethod{
	MethodCash, MethodCard, MethodPix, MethodCheck, MethodBankSlip, MethodPromissoryNote, MethodGateway,
}

// ParsePaymentMethod validates a wire value.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(s)
	_, ok := cashEquivalent[m]
	return m, ok
}

// IsCashEquivalent reports whether entries with this method affect the till.
func (m PaymentMethod) IsCashEquivalent() bool {
	return cashEquivalent[m]
}

// Classification is the outcome of comparing declared vs expected cash.
type Classification string

const (
	ClassExact    Classification = "exact"
	ClassShortage Classification = "shortage"
	ClassSurplus  Classification = "surplus"
)

// RegisterSession is one open-to-close cycle of the physical till.
// At most one row may have Status "open" (partial unique index).
type RegisterSession struct {
	ID                     uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Status                 SessionStatus `gorm:"type:varchar(10);not null"`
	OpeningBalance         Cents         `gorm:"column:opening_balance_cents;not null"`
	ClosingBalanceDeclared *Cents        `gorm:"column:closing_balance_declared_cents"`
	// Reconciliation snapshot, written once on close.
	ExpectedBalance   *Cents          `gorm:"column:expected_balance_cents"`
	Difference        *Cents          `gorm:"column:difference_cents"`
	Classification    *Classification `gorm:"type:varchar(10)"`
	OpenedAt          time.Time       `gorm:"not null"`
	OpenedBy          uuid.UUID       `gorm:"type:uuid;not null"`
	ClosedAt          *time.Time
	ClosedBy          *uuid.UUID `gorm:"type:uuid"`
	ObservationsOpen  *string
	ObservationsClose *string
	// EntryCount is bumped on every append; the conditional update on this
	// row is what serializes appends against close.
	EntryCount int `gorm:"not null;default:0"`

	Entries []LedgerEntry `gorm:"foreignKey:SessionID"`
}

func (RegisterSession) TableName() string { return "register_sessions" }

// IsOpen reports whether entries may still be appended.
func (s *RegisterSession) IsOpen() bool { return s.Status == SessionOpen }

// LedgerEntry is an immutable record of one money movement.
// Entries are never modified or deleted; corrections are offsetting entries.
type LedgerEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_session_seq,priority:1;index:idx_ledger_entries_session_recorded,priority:1"`
	// Seq is the 1-based position inside the session.
	Seq        int           `gorm:"not null;uniqueIndex:idx_ledger_entries_session_seq,priority:2"`
	Kind       EntryKind     `gorm:"type:varchar(20);not null"`
	Amount     Cents         `gorm:"column:amount_cents;not null"`
	Method     PaymentMethod `gorm:"type:varchar(20);not null"`
	Details    DetailsColumn `gorm:"type:text"`
	RecordedAt time.Time     `gorm:"not null;index:idx_ledger_entries_session_recorded,priority:2"`
	RecordedBy uuid.UUID     `gorm:"type:uuid;not null"`
	// ReferenceID links to an external order/payment; not owned here.
	ReferenceID    *string    `gorm:"type:varchar(64)"`
	CancelsEntryID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_ledger_entries_cancels"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
