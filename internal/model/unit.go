package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the magnitude selector used for monetary input and display.
// The wire codes match what the UI sends: "1", "K", "MM".
type Unit string

const (
	UnitExact    Unit = "1"
	UnitThousand Unit = "K"
	UnitMillion  Unit = "MM"
)

var (
	factorExact    = decimal.NewFromInt(1)
	factorThousand = decimal.NewFromInt(1_000)
	factorMillion  = decimal.NewFromInt(1_000_000)
)

// ParseUnit accepts both the wire codes and spelled-out names.
// An empty string defaults to EXACT.
func ParseUnit(raw string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "1", "EXACT":
		return UnitExact, nil
	case "K", "THOUSAND":
		return UnitThousand, nil
	case "MM", "MILLION":
		return UnitMillion, nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidValue, raw)
	}
}

// Factor returns the multiplier the unit applies to a raw amount.
func (u Unit) Factor() decimal.Decimal {
	switch u {
	case UnitThousand:
		return factorThousand
	case UnitMillion:
		return factorMillion
	default:
		return factorExact
	}
}

// Scale converts a raw amount in the given unit to its canonical scaled value.
// Amounts are decimals, so integral inputs stay exact well past 1e12.
func Scale(value decimal.Decimal, unit Unit) (decimal.Decimal, error) {
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidValue)
	}
	return value.Mul(unit.Factor()), nil
}

// ParseAmount parses a user-supplied amount string and scales it by unit.
func ParseAmount(raw string, unit Unit) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must be a number", ErrInvalidValue)
	}
	return Scale(value, unit)
}
