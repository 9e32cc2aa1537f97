package evm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ToBaseUnit converts a decimal amount ("1.5") to base units for a token with the
// given number of decimals.
func ToBaseUnit(amount string, decimals uint8) (*uint256.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if !digits(whole) || (frac != "" && !digits(frac)) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	num := strings.TrimLeft(whole+frac, "0")
	if num == "" {
		num = "0"
	}
	v, err := uint256.FromDecimal(num)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return v, nil
}

// FromBaseUnit renders a base-unit value as a decimal string without trailing zeros.
func FromBaseUnit(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	s := v.Dec()
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
