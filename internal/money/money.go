// Package money holds the fixed-point helpers every ledger and settlement
// computation goes through. Amounts carry exactly two fractional digits.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Places int32 = 2

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrTooManyDecimals   = errors.New("amount has more than two decimal places")
	ErrPercentOutOfRange = errors.New("percentage must be greater than 0 and at most 100")
)

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns round2(amount * pct / 100).
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(Hundred))
}

func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("Parse: %w", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Parse: %w", ErrInvalidAmount)
	}
	if d.Exponent() < -Places && !d.Equal(Round2(d)) {
		return decimal.Zero, fmt.Errorf("Parse: %w", ErrTooManyDecimals)
	}
	return Round2(d), nil
}

// ParseNonNegative is Parse that also rejects amounts below zero.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("ParseNonNegative: %w", ErrInvalidAmount)
	}
	return d, nil
}

func ParsePercentage(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidatePercentage(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func ValidatePercentage(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(Hundred) {
		return fmt.Errorf("ValidatePercentage: %w", ErrPercentOutOfRange)
	}
	if !p.Equal(Round2(p)) {
		return fmt.Errorf("ValidatePercentage: %w", ErrTooManyDecimals)
	}
	return nil
}

func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
