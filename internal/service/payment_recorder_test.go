package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"cashregister/internal/dto"
	"cashregister/internal/model"
	"cashregister/internal/reconcile"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPayment_NoOpenSession(t *testing.T) {
	f := newFixture()
	_, err := f.payments.RecordPayment(context.Background(), f.cashier, dto.RecordPaymentRequest{
		Kind: "sale", Amount: dec("10"), Method: "cash",
	})
	requireKind(t, err, KindNoOpenSession)
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newFixture()
	f.open(t, "0")

	cases := map[string]dto.RecordPaymentRequest{
		"unknown kind":         {Kind: "refund", Amount: dec("1"), Method: "cash"},
		"cancellation kind":    {Kind: "cancellation", Amount: dec("-1"), Method: "cash"},
		"unknown method":       {Kind: "sale", Amount: dec("1"), Method: "bitcoin"},
		"negative sale":        {Kind: "sale", Amount: dec("-1"), Method: "cash"},
		"positive expense":     {Kind: "expense", Amount: dec("5"), Method: "cash"},
		"zero debt payment":    {Kind: "debt_payment", Amount: dec("0"), Method: "cash"},
		"sub-cent amount":      {Kind: "sale", Amount: dec("1.005"), Method: "cash"},
		"wrapping amount":      {Kind: "sale", Amount: dec("184467440737095517.16"), Method: "cash"},
		"pix without details":  {Kind: "sale", Amount: dec("1"), Method: "pix"},
		"cash with details":    {Kind: "sale", Amount: dec("1"), Method: "cash", Details: json.RawMessage(`{"transaction_id":"x"}`)},
		"gateway not approved": {Kind: "sale", Amount: dec("1"), Method: "gateway", Details: json.RawMessage(`{"provider":"p","external_id":"e","status":"rejected"}`)},
		"bad session id":       {Kind: "sale", Amount: dec("1"), Method: "cash", SessionID: strPtr("nope")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.payments.RecordPayment(context.Background(), f.cashier, req)
			requireKind(t, err, KindValidation)
		})
	}
}

func TestRecordPayment_AppendsWithDetails(t *testing.T) {
	f := newFixture()
	s := f.open(t, "0")

	e, err := f.payments.RecordPayment(context.Background(), f.cashier, dto.RecordPaymentRequest{
		Kind:        "sale",
		Amount:      dec("45.90"),
		Method:      "pix",
		ReferenceID: strPtr("order-77"),
		Details:     json.RawMessage(`{"transaction_id":"E999"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, s.ID, e.SessionID)
	assert.Equal(t, 1, e.Seq)
	assert.False(t, e.CashEquivalent)
	assert.Equal(t, model.PixDetails{TransactionID: "E999"}, e.Details)
	require.NotNil(t, e.ReferenceID)
	assert.Equal(t, "order-77", *e.ReferenceID)
	assert.Contains(t, f.repo.eventTypes(), model.EventEntryRecorded)
}

func TestRecordPayment_SessionGuard(t *testing.T) {
	f := newFixture()
	first := f.open(t, "0")
	_, err := f.registers.Close(context.Background(), f.cashier, uuid.MustParse(first.ID), dto.CloseRegisterRequest{})
	require.NoError(t, err)
	second := f.open(t, "0")

	req := dto.RecordPaymentRequest{Kind: "sale", Amount: dec("1"), Method: "cash", SessionID: &first.ID}
	_, err = f.payments.RecordPayment(context.Background(), f.cashier, req)
	requireKind(t, err, KindInvalidState)

	unknown := uuid.NewString()
	req.SessionID = &unknown
	_, err = f.payments.RecordPayment(context.Background(), f.cashier, req)
	requireKind(t, err, KindNotFound)

	req.SessionID = &second.ID
	e, err := f.payments.RecordPayment(context.Background(), f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, second.ID, e.SessionID)
}

func TestRecordPayment_NoAppendAfterClose(t *testing.T) {
	f := newFixture()
	s := f.open(t, "0")
	id := uuid.MustParse(s.ID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = f.payments.RecordPayment(context.Background(), f.cashier, dto.RecordPaymentRequest{
				Kind: "sale", Amount: dec("1"), Method: "cash", SessionID: &s.ID,
			})
		}
	}()
	go func() {
		defer wg.Done()
		_, err := f.registers.Close(context.Background(), f.cashier, id, dto.CloseRegisterRequest{})
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Every entry that made it in is accounted for in the stored expected
	// balance, i.e. nothing was appended after the close snapshot.
	stored, err := f.repo.FindSessionByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpectedBalance)
	assert.Equal(t, reconcile.SessionExpectedBalance(stored), *stored.ExpectedBalance)

	_, err = f.payments.RecordPayment(context.Background(), f.cashier, dto.RecordPaymentRequest{
		Kind: "sale", Amount: dec("1"), Method: "cash", SessionID: &s.ID,
	})
	requireKind(t, err, KindInvalidState)
}

func TestRecordCancellation_Symmetry(t *testing.T) {
	f := newFixture()
	s := f.open(t, "10.00")
	sale := f.record(t, "sale", "25.00", "cash")
	card := f.record(t, "sale", "40.00", "card")

	before, err := f.registers.Current(context.Background())
	require.NoError(t, err)

	c, err := f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(sale.ID))
	require.NoError(t, err)
	assert.Equal(t, "cancellation", c.Kind)
	assert.True(t, c.Amount.Equal(dec("-25")))
	assert.Equal(t, "cash", c.Method)
	require.NotNil(t, c.CancelsEntryID)
	assert.Equal(t, sale.ID, *c.CancelsEntryID)

	_, err = f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(card.ID))
	require.NoError(t, err)

	after, err := f.registers.GetByID(context.Background(), uuid.MustParse(s.ID))
	require.NoError(t, err)
	assert.True(t, after.CurrentBalance.Equal(dec("10")))
	assert.True(t, before.Session.CurrentBalance.Equal(dec("75")))
	for m, total := range after.TotalsByMethod {
		assert.True(t, total.IsZero(), m)
	}
	require.NotNil(t, after.Entries[0].CancelledByEntryID)
	assert.Equal(t, c.ID, *after.Entries[0].CancelledByEntryID)
}

func TestRecordCancellation_Errors(t *testing.T) {
	f := newFixture()
	s := f.open(t, "0")
	sale := f.record(t, "sale", "5.00", "cash")

	_, err := f.payments.RecordCancellation(context.Background(), f.cashier, uuid.New())
	requireKind(t, err, KindNotFound)

	c, err := f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(sale.ID))
	require.NoError(t, err)

	_, err = f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(sale.ID))
	requireKind(t, err, KindAlreadyCancelled)

	_, err = f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(c.ID))
	requireKind(t, err, KindValidation)

	other := f.record(t, "sale", "1.00", "cash")
	_, err = f.registers.Close(context.Background(), f.cashier, uuid.MustParse(s.ID), dto.CloseRegisterRequest{})
	require.NoError(t, err)
	_, err = f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(other.ID))
	requireKind(t, err, KindNotFound)
}

func TestLedger_IsAppendOnly(t *testing.T) {
	f := newFixture()
	s := f.open(t, "0")
	id := uuid.MustParse(s.ID)
	first := f.record(t, "sale", "3.00", "cash")
	snapshot := f.repo.entries(id)

	f.record(t, "expense", "-1.00", "cash")
	_, err := f.payments.RecordCancellation(context.Background(), f.cashier, uuid.MustParse(first.ID))
	require.NoError(t, err)

	now := f.repo.entries(id)
	require.Len(t, now, 3)
	assert.Equal(t, snapshot[0], now[0])
	for i, e := range now {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestTimestampsTakenUnderSessionLock(t *testing.T) {
	f := newFixture()
	s := f.open(t, "0")
	id := uuid.MustParse(s.ID)

	gated := newGatedRepo(f.repo)
	registers := &registerService{repo: gated, actors: f.actors, now: f.now}
	payments := &paymentRecorder{repo: gated, actors: f.actors, now: f.now}

	closeErr := make(chan error, 1)
	go func() {
		_, err := registers.Close(context.Background(), f.cashier, id, dto.CloseRegisterRequest{DeclaredClosingBalance: dec("5")})
		closeErr <- err
	}()
	<-gated.entered

	// Close is parked before the lock; this payment takes it first.
	e, err := payments.RecordPayment(context.Background(), f.cashier, dto.RecordPaymentRequest{
		Kind: "sale", Amount: dec("5.00"), Method: "cash", SessionID: &s.ID,
	})
	require.NoError(t, err)
	close(gated.release)
	require.NoError(t, <-closeErr)

	stored, err := f.repo.FindSessionByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.ClosedAt)
	require.Len(t, stored.Entries, 1)
	assert.Equal(t, e.ID, stored.Entries[0].ID.String())
	assert.True(t, stored.Entries[0].RecordedAt.Before(*stored.ClosedAt),
		"entry %s recorded after close %s", stored.Entries[0].RecordedAt, *stored.ClosedAt)
	require.NotNil(t, stored.Classification)
	assert.Equal(t, model.ClassExact, *stored.Classification)

	// The relay publishes by created_at, so the close event must sort last.
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	last := f.repo.events[len(f.repo.events)-1]
	assert.Equal(t, model.EventRegisterClosed, last.Type)
	for _, ev := range f.repo.events[:len(f.repo.events)-1] {
		assert.True(t, ev.CreatedAt.Before(last.CreatedAt), ev.Type)
	}
}
