package marketplace

import (
	"errors"
	"fmt"
	"math/big"
)

type escrowState interface {
	EscrowGet(saleID uint64) (*Escrow, bool, error)
	EscrowPut(*Escrow) error
}

// EscrowLedger keeps the custody records keyed by sale id. Records are never
// deleted; release only flips the flag.
type EscrowLedger struct {
	state escrowState
}

// NewEscrowLedger binds a ledger to the state backend.
func NewEscrowLedger(state escrowState) *EscrowLedger {
	return &EscrowLedger{state: state}
}

// Create records a new escrow. It fails if a record already exists for saleID.
func (l *EscrowLedger) Create(saleID uint64, buyer, seller [20]byte, amount *big.Int) (*Escrow, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.New("marketplace: escrow amount must be non-negative")
	}
	if _, ok, err := l.state.EscrowGet(saleID); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: sale %d", ErrEscrowExists, saleID)
	}
	escrow := &Escrow{
		SaleID: saleID,
		Buyer:  buyer,
		Seller: seller,
		Amount: new(big.Int).Set(amount),
	}
	if err := l.state.EscrowPut(escrow); err != nil {
		return nil, err
	}
	return escrow.Clone(), nil
}

// Get returns the escrow for saleID.
func (l *EscrowLedger) Get(saleID uint64) (*Escrow, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	escrow, ok, err := l.state.EscrowGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return escrow, nil
}

// MarkReleased sets the released flag. Callers are responsible for checking
// whether the release is permitted.
func (l *EscrowLedger) MarkReleased(saleID uint64) (*Escrow, error) {
	escrow, err := l.Get(saleID)
	if err != nil {
		return nil, err
	}
	escrow.Released = true
	if err := l.state.EscrowPut(escrow); err != nil {
		return nil, err
	}
	return escrow.Clone(), nil
}
