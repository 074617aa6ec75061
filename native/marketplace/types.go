package marketplace

import (
	"math/big"
)

// DisputeWindowSeconds is how long after a sale the buyer may open a dispute.
const DisputeWindowSeconds int64 = 604_800

const maxReasonLength = 1024

// Ruling is the operator's binding decision on a dispute.
type Ruling uint8

const (
	RulingFavorBuyer Ruling = iota + 1
	RulingFavorSeller
)

func (r Ruling) String() string {
	switch r {
	case RulingFavorBuyer:
		return "favor-buyer"
	case RulingFavorSeller:
		return "favor-seller"
	default:
		return "unknown"
	}
}

// Valid reports whether the ruling is one of the two supported outcomes.
func (r Ruling) Valid() bool {
	return r == RulingFavorBuyer || r == RulingFavorSeller
}

// Sale records one completed purchase. Price is copied from the listing at
// purchase time and never changes afterwards.
type Sale struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Price     *big.Int
	CreatedAt int64
	Refunded  bool
	Rating    *uint8
	Review    *string
}

// Clone returns a deep copy of the sale.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Price = cloneBigInt(s.Price)
	if s.Rating != nil {
		rating := *s.Rating
		clone.Rating = &rating
	}
	if s.Review != nil {
		review := *s.Review
		clone.Review = &review
	}
	return &clone
}

// Escrow is the custody bookkeeping paired 1:1 with a sale. Amount is the
// seller proceeds computed at purchase time; no funds are held against it.
type Escrow struct {
	SaleID   uint64
	Buyer    [20]byte
	Seller   [20]byte
	Amount   *big.Int
	Released bool
}

// Clone returns a deep copy of the escrow record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Amount = cloneBigInt(e.Amount)
	return &clone
}

// Dispute is the buyer's challenge of a sale. At most one exists per sale.
type Dispute struct {
	SaleID     uint64
	Buyer      [20]byte
	Seller     [20]byte
	Reason     string
	OpenedAt   int64
	ResolvedAt *int64
	Resolved   bool
	Ruling     *Ruling
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	if d.ResolvedAt != nil {
		at := *d.ResolvedAt
		clone.ResolvedAt = &at
	}
	if d.Ruling != nil {
		ruling := *d.Ruling
		clone.Ruling = &ruling
	}
	return &clone
}

// SplitPrice divides a sale price into the platform fee and the seller
// proceeds. The fee truncates toward zero so fee+seller always equals price.
func SplitPrice(price *big.Int, feePercent uint64) (fee, seller *big.Int) {
	total := cloneBigInt(price)
	fee = new(big.Int).Mul(total, new(big.Int).SetUint64(feePercent))
	fee.Quo(fee, big.NewInt(100))
	seller = new(big.Int).Sub(total, fee)
	return fee, seller
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
