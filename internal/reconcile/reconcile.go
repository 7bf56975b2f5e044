// Package reconcile computes the expected cash in a register session and
// compares it against the balance declared at close. Everything here is pure.
package reconcile

import (
	"cashregister/internal/model"

	"github.com/google/uuid"
)

// Result is the outcome of a blind count.
type Result struct {
	ExpectedBalance        model.Cents
	DeclaredClosingBalance model.Cents
	Difference             model.Cents
	Classification         model.Classification
}

// ExpectedBalance returns the opening balance plus every cash-equivalent
// entry. A cancellation counts when the entry it offsets counts, so a
// cancelled entry and its cancellation always net to zero.
func ExpectedBalance(opening model.Cents, entries []model.LedgerEntry) model.Cents {
	methods := make(map[uuid.UUID]model.PaymentMethod, len(entries))
	for _, e := range entries {
		methods[e.ID] = e.Method
	}

	total := opening
	for _, e := range entries {
		method := e.Method
		if e.Kind == model.KindCancellation && e.CancelsEntryID != nil {
			if orig, ok := methods[*e.CancelsEntryID]; ok {
				method = orig
			}
		}
		if method.IsCashEquivalent() {
			total += e.Amount
		}
	}
	return total
}

// SessionExpectedBalance is ExpectedBalance over a loaded session.
func SessionExpectedBalance(s *model.RegisterSession) model.Cents {
	return ExpectedBalance(s.OpeningBalance, s.Entries)
}

// Classify maps a difference (declared - expected) to its classification.
func Classify(difference model.Cents) model.Classification {
	switch {
	case difference == 0:
		return model.ClassExact
	case difference < 0:
		return model.ClassShortage
	default:
		return model.ClassSurplus
	}
}

// Reconcile compares declared against the session's expected balance.
// A non-zero difference is reported, never rejected.
func Reconcile(s *model.RegisterSession, declared model.Cents) Result {
	expected := SessionExpectedBalance(s)
	diff := declared - expected
	return Result{
		ExpectedBalance:        expected,
		DeclaredClosingBalance: declared,
		Difference:             diff,
		Classification:         Classify(diff),
	}
}

// TotalsByMethod sums entry amounts per payment method, net of cancellations.
// Every known method is present in the result, zero when unused.
func TotalsByMethod(entries []model.LedgerEntry) map[model.PaymentMethod]model.Cents {
	totals := make(map[model.PaymentMethod]model.Cents, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		totals[m] = 0
	}
	for _, e := range entries {
		totals[e.Method] += e.Amount
	}
	return totals
}
