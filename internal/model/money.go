package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer minor units. All ledger arithmetic
// happens in Cents; decimal major units only exist at the API boundary.
type Cents int64

// ErrSubCentPrecision is returned when a major-unit amount has more than two
// fractional digits.
var ErrSubCentPrecision = errors.New("amount has more than two decimal places")

// MaxCents bounds the magnitude of any single amount (one trillion in major
// units). Sums of bounded amounts stay far inside int64.
const MaxCents Cents = 100_000_000_000_000

// ErrAmountOutOfRange is returned for amounts whose magnitude exceeds MaxCents.
var ErrAmountOutOfRange = errors.New("amount is out of range")

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(int64(MaxCents))
)

// CentsFromDecimal converts a major-unit amount (e.g. 12.50) to Cents.
// Amounts that cannot be represented exactly, or exceed MaxCents, are
// rejected, never rounded or wrapped.
func CentsFromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrSubCentPrecision)
	}
	// Checked on the decimal before IntPart, which wraps past int64.
	if scaled.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrAmountOutOfRange)
	}
	return Cents(scaled.IntPart()), nil
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
