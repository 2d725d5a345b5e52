// Package types provides common value types shared across domains.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParsePrice reads a price that may arrive as a JSON number or a numeric string.
// Values are rounded to 2 decimal places; negative prices are rejected.
func ParsePrice(v any) (*Money, error) {
	var d decimal.Decimal
	switch p := v.(type) {
	case nil:
		return nil, nil
	case float64:
		d = decimal.NewFromFloat(p)
	case string:
		if p == "" {
			return nil, nil
		}
		parsed, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", p, err)
		}
		d = parsed
	default:
		return nil, fmt.Errorf("unsupported price type %T", v)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative price %s", d.String())
	}
	d = d.Round(2)
	return &d, nil
}
