package domain

import (
	"strconv"
)

// CurrencySymbol prefixes every displayed price.
const CurrencySymbol = "₦"

// FormatPrice renders a whole-unit amount with thousands separators,
// e.g. 1250000 -> "₦1,250,000".
func FormatPrice(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b []byte
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b = append(b, ',')
		}
		b = append(b, digits[i])
	}

	if neg {
		return "-" + CurrencySymbol + string(b)
	}
	return CurrencySymbol + string(b)
}
