package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// maxAmountScale is the ledger's fixed fractional precision.
const maxAmountScale = 2

// ParseAmount parses a monetary value from its string form.
// The value must be a positive decimal with at most two fractional digits.
// Returns ErrInvalidAmount (wrapped) on any violation; no floating-point
// representation is involved at any point.
func ParseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, value)
	}

	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}

	return d, nil
}

// ValidateAmount checks that an already-parsed amount is strictly positive
// and representable at the ledger's precision.
func ValidateAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, d)
	}
	if !d.Equal(d.Truncate(maxAmountScale)) {
		return fmt.Errorf("%w: at most %d decimal places, got %s", ErrInvalidAmount, maxAmountScale, d)
	}
	return nil
}

// FormatAmount renders a balance or transfer amount as a 2-decimal string,
// rounding half away from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(maxAmountScale)
}
