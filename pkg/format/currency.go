// Package format renders amounts the way Brazilian accounting reports do.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency returns a BRL string with thousands separators (e.g., "-R$ 1.234,56").
func Currency(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	if d.IsNegative() {
		return "-R$ " + formatPositive(d.Abs())
	}
	return "R$ " + formatPositive(d)
}

// NumericCurrency returns a pt-BR number without a currency symbol (e.g., "-1.234,56").
func NumericCurrency(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + formatPositive(d.Abs())
}

// Percent renders a ratio as a pt-BR percentage with the given decimals
// (e.g., 0.0370 -> "3,70%").
func Percent(ratio float64, places int32) string {
	d := decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).Round(places)
	return strings.Replace(d.StringFixed(places), ".", ",", 1) + "%"
}

// Decimal renders v in pt-BR notation with every significant digit
// (e.g., 1.125 -> "1,125", 3 -> "3").
func Decimal(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).String(), ".", ",", 1)
}

// ExactPercent renders a ratio as a percentage without rounding
// (e.g., 0.375 -> "37,5%", 0.4 -> "40%").
func ExactPercent(ratio float64) string {
	d := decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100))
	return strings.Replace(d.String(), ".", ",", 1) + "%"
}

func formatPositive(value decimal.Decimal) string {
	formatted := value.StringFixed(2)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte('.')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "," + decPart
}
