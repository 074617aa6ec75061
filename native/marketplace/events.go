package marketplace

import (
	"math/big"
	"strconv"

	"nhbmarket/core/types"
	"nhbmarket/crypto"
	"nhbmarket/native/params"
)

const (
	EventTypePurchaseCompleted = "market.purchase.completed"
	EventTypeEscrowCreated     = "market.escrow.created"
	EventTypeEscrowReleased    = "market.escrow.released"
	EventTypeDisputeOpened     = "market.dispute.opened"
	EventTypeDisputeResolved   = "market.dispute.resolved"
	EventTypeSaleRefunded      = "market.sale.refunded"
	EventTypeParamsUpdated     = "market.params.updated"
)

func saleID(id uint64) string { return strconv.FormatUint(id, 10) }

func newPurchaseEvent(s *Sale, seller [20]byte, fee, proceeds *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePurchaseCompleted,
		Attributes: map[string]string{
			"saleId":    saleID(s.ID),
			"listingId": strconv.FormatUint(s.ListingID, 10),
			"buyer":     crypto.FormatAddress(s.Buyer),
			"seller":    crypto.FormatAddress(seller),
			"price":     s.Price.String(),
			"fee":       fee.String(),
			"proceeds":  proceeds.String(),
			"createdAt": strconv.FormatInt(s.CreatedAt, 10),
		},
	}
}

func newEscrowEvent(eventType string, esc *Escrow) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"saleId":   saleID(esc.SaleID),
			"buyer":    crypto.FormatAddress(esc.Buyer),
			"seller":   crypto.FormatAddress(esc.Seller),
			"amount":   esc.Amount.String(),
			"released": strconv.FormatBool(esc.Released),
		},
	}
}

func newDisputeOpenedEvent(d *Dispute) *types.Event {
	attrs := map[string]string{
		"saleId":   saleID(d.SaleID),
		"buyer":    crypto.FormatAddress(d.Buyer),
		"seller":   crypto.FormatAddress(d.Seller),
		"openedAt": strconv.FormatInt(d.OpenedAt, 10),
	}
	if d.Reason != "" {
		attrs["reason"] = d.Reason
	}
	return &types.Event{Type: EventTypeDisputeOpened, Attributes: attrs}
}

func newDisputeResolvedEvent(d *Dispute) *types.Event {
	attrs := map[string]string{"saleId": saleID(d.SaleID)}
	if d.Ruling != nil {
		attrs["ruling"] = d.Ruling.String()
	}
	if d.ResolvedAt != nil {
		attrs["resolvedAt"] = strconv.FormatInt(*d.ResolvedAt, 10)
	}
	return &types.Event{Type: EventTypeDisputeResolved, Attributes: attrs}
}

func newRefundEvent(s *Sale, esc *Escrow) *types.Event {
	return &types.Event{
		Type: EventTypeSaleRefunded,
		Attributes: map[string]string{
			"saleId": saleID(s.ID),
			"buyer":  crypto.FormatAddress(s.Buyer),
			"amount": esc.Amount.String(),
		},
	}
}

func newParamsEvent(m params.Market, previousFee uint64) *types.Event {
	return &types.Event{
		Type: EventTypeParamsUpdated,
		Attributes: map[string]string{
			"owner":           crypto.FormatAddress(m.Owner),
			"feePercent":      strconv.FormatUint(m.FeePercent, 10),
			"previousPercent": strconv.FormatUint(previousFee, 10),
		},
	}
}
