// Package report derives dashboard figures from ledger entries. The folds are
// pure and never touch persistence.
package report

import (
	"sort"
	"time"

	"cashregister/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// DayCount is the number of sales recorded on one calendar day.
type DayCount struct {
	Date  string
	Count int
}

// Summary is the dashboard snapshot for a reference day.
type Summary struct {
	Date      string
	Today     model.Cents
	Yesterday model.Cents
	GrowthPct decimal.Decimal
	Weekly    []DayCount
	Recent    []model.LedgerEntry
}

// Effective drops cancellation entries and every entry that has been
// cancelled, leaving the movements that still stand.
func Effective(entries []model.LedgerEntry) []model.LedgerEntry {
	cancelled := make(map[uuid.UUID]bool)
	for _, e := range entries {
		if e.Kind == model.KindCancellation && e.CancelsEntryID != nil {
			cancelled[*e.CancelsEntryID] = true
		}
	}
	out := make([]model.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == model.KindCancellation || cancelled[e.ID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// isSale reports whether e is money coming in from a customer.
func isSale(e model.LedgerEntry) bool {
	return e.Kind == model.KindSale || e.Kind == model.KindDebtPayment
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayTotal sums the sales recorded on the calendar day of day.
func DayTotal(entries []model.LedgerEntry, day time.Time) model.Cents {
	from := startOfDay(day)
	to := from.AddDate(0, 0, 1)
	var total model.Cents
	for _, e := range entries {
		at := e.RecordedAt.In(day.Location())
		if isSale(e) && !at.Before(from) && at.Before(to) {
			total += e.Amount
		}
	}
	return total
}

// WeeklyCounts returns sale counts for the seven days ending on day, oldest
// first. Days without sales are present with a zero count.
func WeeklyCounts(entries []model.LedgerEntry, day time.Time) []DayCount {
	first := startOfDay(day).AddDate(0, 0, -6)
	counts := make([]DayCount, 7)
	index := make(map[string]int, len(counts))
	for i := range counts {
		counts[i].Date = first.AddDate(0, 0, i).Format(dateLayout)
		index[counts[i].Date] = i
	}
	for _, e := range entries {
		if !isSale(e) {
			continue
		}
		if i, ok := index[e.RecordedAt.In(day.Location()).Format(dateLayout)]; ok {
			counts[i].Count++
		}
	}
	return counts
}

var hundred = decimal.NewFromInt(100)

// Growth returns the percentage change from prev to cur rounded to two
// places. It is 0 when both are zero and 100 when only cur is non-zero.
func Growth(cur, prev model.Cents) decimal.Decimal {
	switch {
	case prev == 0 && cur == 0:
		return decimal.Zero
	case prev == 0:
		return hundred
	}
	c := decimal.NewFromInt(int64(cur))
	p := decimal.NewFromInt(int64(prev))
	return c.Sub(p).Div(p).Mul(hundred).Round(2)
}

// Recent returns up to n entries, newest first. Ties on RecordedAt keep the
// later sequence number first.
func Recent(entries []model.LedgerEntry, n int) []model.LedgerEntry {
	out := make([]model.LedgerEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Build folds entries into the dashboard for the day containing now.
func Build(entries []model.LedgerEntry, now time.Time, recentN int) Summary {
	eff := Effective(entries)
	today := DayTotal(eff, now)
	yesterday := DayTotal(eff, now.AddDate(0, 0, -1))
	return Summary{
		Date:      now.Format(dateLayout),
		Today:     today,
		Yesterday: yesterday,
		GrowthPct: Growth(today, yesterday),
		Weekly:    WeeklyCounts(eff, now),
		Recent:    Recent(eff, recentN),
	}
}
