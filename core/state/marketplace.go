package state

import (
	"fmt"
	"math/big"

	"nhbmarket/native/marketplace"
)

// Optional fields are flattened into presence flags because RLP cannot tell a
// nil pointer from a zero value.
type storedSale struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Price     *big.Int
	CreatedAt uint64
	Refunded  bool
	HasRating bool
	Rating    uint8
	HasReview bool
	Review    string
}

func newStoredSale(s *marketplace.Sale) *storedSale {
	stored := &storedSale{
		ID:        s.ID,
		ListingID: s.ListingID,
		Buyer:     s.Buyer,
		Price:     big.NewInt(0),
		CreatedAt: uint64(s.CreatedAt),
		Refunded:  s.Refunded,
	}
	if s.Price != nil {
		stored.Price = new(big.Int).Set(s.Price)
	}
	if s.Rating != nil {
		stored.HasRating = true
		stored.Rating = *s.Rating
	}
	if s.Review != nil {
		stored.HasReview = true
		stored.Review = *s.Review
	}
	return stored
}

func (s *storedSale) toSale() *marketplace.Sale {
	sale := &marketplace.Sale{
		ID:        s.ID,
		ListingID: s.ListingID,
		Buyer:     s.Buyer,
		Price:     big.NewInt(0),
		CreatedAt: int64(s.CreatedAt),
		Refunded:  s.Refunded,
	}
	if s.Price != nil {
		sale.Price = new(big.Int).Set(s.Price)
	}
	if s.HasRating {
		rating := s.Rating
		sale.Rating = &rating
	}
	if s.HasReview {
		review := s.Review
		sale.Review = &review
	}
	return sale
}

type storedEscrow struct {
	SaleID   uint64
	Buyer    [20]byte
	Seller   [20]byte
	Amount   *big.Int
	Released bool
}

type storedDispute struct {
	SaleID     uint64
	Buyer      [20]byte
	Seller     [20]byte
	Reason     string
	OpenedAt   uint64
	Resolved   bool
	ResolvedAt uint64
	Ruling     uint8
}

func newStoredDispute(d *marketplace.Dispute) *storedDispute {
	stored := &storedDispute{
		SaleID:   d.SaleID,
		Buyer:    d.Buyer,
		Seller:   d.Seller,
		Reason:   d.Reason,
		OpenedAt: uint64(d.OpenedAt),
		Resolved: d.Resolved,
	}
	if d.ResolvedAt != nil {
		stored.ResolvedAt = uint64(*d.ResolvedAt)
	}
	if d.Ruling != nil {
		stored.Ruling = uint8(*d.Ruling)
	}
	return stored
}

func (s *storedDispute) toDispute() *marketplace.Dispute {
	dispute := &marketplace.Dispute{
		SaleID:   s.SaleID,
		Buyer:    s.Buyer,
		Seller:   s.Seller,
		Reason:   s.Reason,
		OpenedAt: int64(s.OpenedAt),
		Resolved: s.Resolved,
	}
	if s.Resolved {
		at := int64(s.ResolvedAt)
		dispute.ResolvedAt = &at
		ruling := marketplace.Ruling(s.Ruling)
		dispute.Ruling = &ruling
	}
	return dispute
}

// SaleGet loads the sale stored under id.
func (m *Manager) SaleGet(id uint64) (*marketplace.Sale, bool, error) {
	var stored storedSale
	ok, err := m.KVGet(idKey(salePrefix, id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toSale(), true, nil
}

// SalePut persists a sale under its id.
func (m *Manager) SalePut(s *marketplace.Sale) error {
	if s == nil || s.ID == 0 {
		return fmt.Errorf("marketplace: sale id must be assigned")
	}
	return m.KVPut(idKey(salePrefix, s.ID), newStoredSale(s))
}

// EscrowGet loads the escrow paired with saleID.
func (m *Manager) EscrowGet(saleID uint64) (*marketplace.Escrow, bool, error) {
	var stored storedEscrow
	ok, err := m.KVGet(idKey(escrowPrefix, saleID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	escrow := &marketplace.Escrow{
		SaleID:   stored.SaleID,
		Buyer:    stored.Buyer,
		Seller:   stored.Seller,
		Amount:   big.NewInt(0),
		Released: stored.Released,
	}
	if stored.Amount != nil {
		escrow.Amount = new(big.Int).Set(stored.Amount)
	}
	return escrow, true, nil
}

// EscrowPut persists an escrow record keyed by its sale id.
func (m *Manager) EscrowPut(e *marketplace.Escrow) error {
	if e == nil || e.SaleID == 0 {
		return fmt.Errorf("marketplace: escrow sale id must be assigned")
	}
	amount := big.NewInt(0)
	if e.Amount != nil {
		amount = new(big.Int).Set(e.Amount)
	}
	return m.KVPut(idKey(escrowPrefix, e.SaleID), &storedEscrow{
		SaleID:   e.SaleID,
		Buyer:    e.Buyer,
		Seller:   e.Seller,
		Amount:   amount,
		Released: e.Released,
	})
}

// DisputeGet loads the dispute opened against saleID.
func (m *Manager) DisputeGet(saleID uint64) (*marketplace.Dispute, bool, error) {
	var stored storedDispute
	ok, err := m.KVGet(idKey(disputePrefix, saleID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toDispute(), true, nil
}

// DisputePut persists a dispute keyed by its sale id.
func (m *Manager) DisputePut(d *marketplace.Dispute) error {
	if d == nil || d.SaleID == 0 {
		return fmt.Errorf("marketplace: dispute sale id must be assigned")
	}
	return m.KVPut(idKey(disputePrefix, d.SaleID), newStoredDispute(d))
}
