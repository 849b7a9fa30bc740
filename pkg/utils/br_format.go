package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatBRL formats an amount as Brazilian reais, e.g. "R$ 1.234.567,89".
func FormatBRL(amount float64) string {
	s := FormatDecimalBR(math.Abs(amount), 2)
	if amount < 0 {
		return "-R$ " + s
	}
	return "R$ " + s
}

// FormatDecimalBR formats n with "." thousands separators and a decimal
// comma, using the given number of decimals.
func FormatDecimalBR(n float64, decimals int) string {
	negative := n < 0
	s := fmt.Sprintf("%.*f", decimals, math.Abs(n))

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i+1:]
	}

	out := groupThousands(intPart)
	if frac != "" {
		out += "," + frac
	}
	if negative {
		return "-" + out
	}
	return out
}

// FormatPct formats a percentage with sign, e.g. 2.45 → "+2,45%".
func FormatPct(pct float64) string {
	s := FormatDecimalBR(pct, 2) + "%"
	if pct >= 0 {
		return "+" + s
	}
	return s
}

// FormatVolume formats a traded volume compactly, e.g. 25000000 → "25,00 mi".
func FormatVolume(volume float64) string {
	v := math.Abs(volume)
	switch {
	case v >= 1e9:
		return FormatDecimalBR(volume/1e9, 2) + " bi"
	case v >= 1e6:
		return FormatDecimalBR(volume/1e6, 2) + " mi"
	case v >= 1e3:
		return FormatDecimalBR(volume/1e3, 2) + " mil"
	default:
		return FormatDecimalBR(volume, 0)
	}
}

// groupThousands inserts "." every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
