package events

import (
	"math/big"
	"strings"
)

func normalizeReason(reason string) string {
	return strings.ToLower(strings.TrimSpace(reason))
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
