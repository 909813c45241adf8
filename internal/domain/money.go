package domain

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units (paise). All balances and
// transaction amounts are carried as Amount so no float arithmetic touches money.
type Amount int64

// MinorUnitScale is the number of fractional digits an Amount carries.
const MinorUnitScale = 2

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// NewAmountFromDecimal converts a major-unit decimal into an Amount.
// More than two fractional digits is rejected rather than silently rounded.
func NewAmountFromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(MinorUnitScale)) {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MinorUnitScale)
	}
	minor := d.Shift(MinorUnitScale)
	if minor.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Amount(minor.IntPart()), nil
}

// ParseAmount parses a major-unit string such as "4950" or "12.50".
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidAmount, raw)
	}
	return NewAmountFromDecimal(d)
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(raw string) Amount {
	a, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Major returns a whole-unit Amount, e.g. Major(50) == 50.00.
func Major(units int64) Amount {
	return Amount(units * 100)
}

// Validate rejects zero and negative amounts.
func (a Amount) Validate() error {
	if a <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorUnitScale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorUnitScale)
}

// MarshalJSON renders major units as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = 0
		return nil
	}
	raw := strings.Trim(string(trimmed), "\"")
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
