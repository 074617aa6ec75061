package marketplace

import (
	"math/big"
)

// Purchase buys one unit of a listing on behalf of buyer. The seller proceeds
// are paid directly to the seller and the fee to the operator; the escrow
// record created alongside the sale tracks the proceeds for dispute handling.
func (e *Engine) Purchase(listingID uint64, buyer [20]byte) (*Sale, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.market()
	if err != nil {
		return nil, err
	}
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	if !listing.Available() {
		return nil, ErrListingUnavailable
	}

	price := new(big.Int).Set(listing.Price)
	fee, proceeds := SplitPrice(price, market.FeePercent)

	// A self-transfer of the full price proves the buyer can cover both legs
	// before anything moves.
	if err := e.move(price, buyer, buyer); err != nil {
		return nil, err
	}
	if err := e.move(proceeds, buyer, listing.Seller); err != nil {
		return nil, err
	}
	if err := e.move(fee, buyer, market.Owner); err != nil {
		return nil, err
	}

	if err := listing.Decrement(); err != nil {
		return nil, ErrListingUnavailable
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}

	id, err := e.state.AllocateSaleID()
	if err != nil {
		return nil, err
	}
	sale := &Sale{
		ID:        id,
		ListingID: listing.ID,
		Buyer:     buyer,
		Price:     price,
		CreatedAt: e.now(),
	}
	if err := e.state.SalePut(sale); err != nil {
		return nil, err
	}
	escrow, err := e.ledger.Create(id, buyer, listing.Seller, proceeds)
	if err != nil {
		return nil, err
	}

	e.emit(newPurchaseEvent(sale, listing.Seller, fee, proceeds))
	e.emit(newEscrowEvent(EventTypeEscrowCreated, escrow))
	return sale.Clone(), nil
}
