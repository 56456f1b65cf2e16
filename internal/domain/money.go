package domain

import (
	"strconv"
	"strings"
)

// LocalCurrency is the ISO code of store prices.
const LocalCurrency = "XOF"

// FormatFCFA renders an amount with space-grouped thousands, "14 000 FCFA".
func FormatFCFA(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" FCFA")
	return b.String()
}
