package models

import (
	"fmt"
	"math"
	"strings"
)

// ParseAmount converts a decimal string ("1000.00", "0.5") into minor
// currency units, rounding half-up to the nearest cent. This is the
// only place a user-entered decimal is touched; everything past it is
// int64 cents. No floating point is involved.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ValidationErrors{{Field: "amount", Msg: "required"}}
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		return 0, ValidationErrors{{Field: "amount", Msg: "must be positive"}}
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	var cents int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, ValidationErrors{{Field: "amount", Msg: "not a valid decimal"}}
		}
		cents = cents*10 + int64(c-'0')
		// bound covers the upcoming *100 scale and the cent digits
		if cents > math.MaxInt64/1000 {
			return 0, ValidationErrors{{Field: "amount", Msg: "too large"}}
		}
	}
	cents *= 100

	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, ValidationErrors{{Field: "amount", Msg: "not a valid decimal"}}
		}
	}
	frac := fracPart + "00"
	cents += int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	// half-up on the third fraction digit
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		cents++
	}
	if cents <= 0 {
		return 0, ValidationErrors{{Field: "amount", Msg: "must be > 0"}}
	}
	return cents, nil
}

// FormatCents renders minor units as a decimal with the currency code,
// e.g. FormatCents(100050, "ZAR") == "ZAR 1000.50".
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
