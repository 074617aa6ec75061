package events

import (
	"math/big"

	"nhbmarket/core/types"
	"nhbmarket/crypto"
)

const (
	// TypeTransfer is emitted for native token balance movements.
	TypeTransfer = "transfer.native"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
	Reason string
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	attrs["from"] = crypto.FormatAddress(e.From)
	attrs["to"] = crypto.FormatAddress(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	if reason := normalizeReason(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
