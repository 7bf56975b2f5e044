package report

import (
	"testing"
	"time"

	"cashregister/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func sale(amount model.Cents, at time.Time) model.LedgerEntry {
	return model.LedgerEntry{ID: uuid.New(), Kind: model.KindSale, Amount: amount, Method: model.MethodCash, RecordedAt: at}
}

func TestGrowth(t *testing.T) {
	assert.True(t, Growth(0, 0).Equal(decimal.Zero))
	assert.True(t, Growth(500, 0).Equal(decimal.NewFromInt(100)))
	assert.True(t, Growth(150, 100).Equal(decimal.NewFromInt(50)))
	assert.True(t, Growth(0, 100).Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, "33.33", Growth(400, 300).StringFixed(2))
}

func TestEffective_DropsCancelledAndCancellations(t *testing.T) {
	kept := sale(1000, now)
	gone := sale(2000, now)
	id := gone.ID
	c := model.LedgerEntry{ID: uuid.New(), Kind: model.KindCancellation, Amount: -2000, CancelsEntryID: &id, RecordedAt: now}

	eff := Effective([]model.LedgerEntry{kept, gone, c})
	require.Len(t, eff, 1)
	assert.Equal(t, kept.ID, eff[0].ID)
}

func TestDayTotal_SalesAndDebtPaymentsOnly(t *testing.T) {
	debt := sale(300, now)
	debt.Kind = model.KindDebtPayment
	expense := model.LedgerEntry{ID: uuid.New(), Kind: model.KindExpense, Amount: -999, RecordedAt: now}
	entries := []model.LedgerEntry{
		sale(1000, now),
		debt,
		expense,
		sale(700, now.AddDate(0, 0, -1)),
	}
	assert.Equal(t, model.Cents(1300), DayTotal(entries, now))
	assert.Equal(t, model.Cents(700), DayTotal(entries, now.AddDate(0, 0, -1)))
}

func TestWeeklyCounts(t *testing.T) {
	entries := []model.LedgerEntry{
		sale(100, now),
		sale(100, now.Add(-time.Hour)),
		sale(100, now.AddDate(0, 0, -6)),
		sale(100, now.AddDate(0, 0, -7)), // outside the window
	}
	counts := WeeklyCounts(entries, now)
	require.Len(t, counts, 7)
	assert.Equal(t, "2026-03-04", counts[0].Date)
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, "2026-03-10", counts[6].Date)
	assert.Equal(t, 2, counts[6].Count)
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	assert.Equal(t, 3, total)
}

func TestRecent_NewestFirst(t *testing.T) {
	a := sale(1, now.Add(-2*time.Hour))
	b := sale(2, now.Add(-time.Hour))
	c := sale(3, now)
	got := Recent([]model.LedgerEntry{a, b, c}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestBuild(t *testing.T) {
	s := Build([]model.LedgerEntry{
		sale(1500, now),
		sale(1000, now.AddDate(0, 0, -1)),
	}, now, 10)

	assert.Equal(t, "2026-03-10", s.Date)
	assert.Equal(t, model.Cents(1500), s.Today)
	assert.Equal(t, model.Cents(1000), s.Yesterday)
	assert.True(t, s.GrowthPct.Equal(decimal.NewFromInt(50)))
	assert.Len(t, s.Recent, 2)
}
