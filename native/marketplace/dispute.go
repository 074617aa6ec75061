package marketplace

import (
	"fmt"
	"strings"
)

func withinWindow(now, createdAt int64) bool {
	return now-createdAt < DisputeWindowSeconds
}

// OpenDispute lets the buyer challenge a sale while its escrow is unreleased
// and the dispute window is still open. Only one dispute may exist per sale.
func (e *Engine) OpenDispute(saleID uint64, caller [20]byte, reason string) (*Dispute, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sale, ok, err := e.state.SaleGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSaleNotFound
	}
	escrow, ok, err := e.state.EscrowGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	now := e.now()
	if caller != escrow.Buyer || escrow.Released || !withinWindow(now, sale.CreatedAt) {
		return nil, ErrDisputeWindowClosedOrUnauthorized
	}
	if _, exists, err := e.state.DisputeGet(saleID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDisputeExists
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidReason, maxReasonLength)
	}
	dispute := &Dispute{
		SaleID:   saleID,
		Buyer:    escrow.Buyer,
		Seller:   escrow.Seller,
		Reason:   reason,
		OpenedAt: now,
	}
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	e.emit(newDisputeOpenedEvent(dispute))
	return dispute.Clone(), nil
}

// ResolveDispute records the operator's ruling. Ruling for the buyer refunds
// the escrowed proceeds from the operator account and marks the sale
// refunded; ruling for the seller releases the escrow. Either way the
// resolution is final.
func (e *Engine) ResolveDispute(saleID uint64, favorBuyer bool, caller [20]byte) (*Dispute, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.market()
	if err != nil {
		return nil, err
	}
	if caller != market.Owner {
		return nil, ErrUnauthorized
	}
	dispute, ok, err := e.state.DisputeGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDisputeNotFound
	}
	if dispute.Resolved {
		return nil, ErrAlreadyResolved
	}
	escrow, ok, err := e.state.EscrowGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}

	now := e.now()
	ruling := RulingFavorSeller
	if favorBuyer {
		ruling = RulingFavorBuyer
	}
	dispute.Resolved = true
	dispute.ResolvedAt = &now
	dispute.Ruling = &ruling

	if favorBuyer {
		sale, ok, err := e.state.SaleGet(saleID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSaleNotFound
		}
		if err := e.move(escrow.Amount, market.Owner, escrow.Buyer); err != nil {
			return nil, err
		}
		sale.Refunded = true
		if err := e.state.SalePut(sale); err != nil {
			return nil, err
		}
		if err := e.state.DisputePut(dispute); err != nil {
			return nil, err
		}
		e.emit(newDisputeResolvedEvent(dispute))
		e.emit(newRefundEvent(sale, escrow))
		return dispute.Clone(), nil
	}

	released, err := e.ledger.MarkReleased(saleID)
	if err != nil {
		return nil, err
	}
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	e.emit(newDisputeResolvedEvent(dispute))
	e.emit(newEscrowEvent(EventTypeEscrowReleased, released))
	return dispute.Clone(), nil
}
