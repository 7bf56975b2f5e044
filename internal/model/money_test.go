package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsFromDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want Cents
	}{
		{"0", 0},
		{"100", 10000},
		{"125.5", 12550},
		{"125.50", 12550},
		{"-20.00", -2000},
		{"0.01", 1},
	}
	for _, tc := range cases {
		got, err := CentsFromDecimal(decimal.RequireFromString(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestCentsFromDecimal_RejectsSubCent(t *testing.T) {
	for _, in := range []string{"0.001", "10.005", "-1.999"} {
		_, err := CentsFromDecimal(decimal.RequireFromString(in))
		assert.True(t, errors.Is(err, ErrSubCentPrecision), in)
	}
}

func TestCentsFromDecimal_RejectsOutOfRange(t *testing.T) {
	// The first two would wrap to 1.00 and MinInt64 if converted unchecked.
	for _, in := range []string{"184467440737095517.16", "92233720368547758.08", "1000000000000.01", "-1000000000000.01"} {
		_, err := CentsFromDecimal(decimal.RequireFromString(in))
		assert.True(t, errors.Is(err, ErrAmountOutOfRange), in)
	}

	got, err := CentsFromDecimal(decimal.RequireFromString("-1000000000000.00"))
	require.NoError(t, err)
	assert.Equal(t, -MaxCents, got)
}

func TestCents_DecimalRoundTrip(t *testing.T) {
	c := Cents(-12345)
	assert.Equal(t, "-123.45", c.String())
	back, err := CentsFromDecimal(c.Decimal())
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestEntryKind_SignValid(t *testing.T) {
	assert.True(t, KindSale.SignValid(1))
	assert.False(t, KindSale.SignValid(0))
	assert.False(t, KindSale.SignValid(-1))
	assert.True(t, KindDebtPayment.SignValid(500))
	assert.True(t, KindExpense.SignValid(-1))
	assert.False(t, KindExpense.SignValid(1))
	assert.True(t, KindCancellation.SignValid(-5))
	assert.False(t, EntryKind("refund").SignValid(5))
}

func TestCashEquivalentMapping(t *testing.T) {
	for _, m := range PaymentMethods {
		_, known := ParsePaymentMethod(string(m))
		assert.True(t, known, m)
		assert.Equal(t, m == MethodCash, m.IsCashEquivalent(), m)
	}
	_, ok := ParsePaymentMethod("bitcoin")
	assert.False(t, ok)
}
