package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatVND renders an amount like 1.250.000 ₫.
func FormatVND(amount float64) string {
	s := decimal.NewFromFloat(amount).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + " ₫"
	if neg {
		out = "-" + out
	}
	return out
}
