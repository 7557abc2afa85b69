// Package money converts between decimal amounts and integer minor units.
// Ledger arithmetic never leaves int64; decimals only appear at the edges
// (bank exports, CLI input, display).
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true, "KRW": true, "VND": true, "CLP": true, "ISK": true, "XOF": true, "XAF": true,
}

// threeDecimalCurrencies use thousandths.
var threeDecimalCurrencies = map[string]bool{
	"BHD": true, "KWD": true, "OMR": true, "TND": true, "JOD": true,
}

// Exponent returns the number of minor-unit digits for an ISO 4217 code.
func Exponent(currency string) int32 {
	c := strings.ToUpper(currency)
	switch {
	case zeroDecimalCurrencies[c]:
		return 0
	case threeDecimalCurrencies[c]:
		return 3
	default:
		return 2
	}
}

// ToMinor converts d to minor units of currency. It fails if d carries more
// precision than the currency allows.
func ToMinor(d decimal.Decimal, currency string) (int64, error) {
	exp := Exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", d, exp, currency)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", d)
	}
	return scaled.IntPart(), nil
}

// ParseMinor parses a decimal string (e.g. "-4.00") into minor units.
func ParseMinor(s, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return ToMinor(d, currency)
}

// FromMinor converts minor units back into a decimal.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units with the currency's fixed precision, e.g. "-4.00".
func Format(minor int64, currency string) string {
	return FromMinor(minor, currency).StringFixed(Exponent(currency))
}
