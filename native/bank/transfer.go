package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"nhbmarket/core/events"
	"nhbmarket/core/types"
)

var (
	// ErrInsufficientFunds is returned when the source balance cannot cover a
	// transfer. The transfer leaves no effect.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrBalanceOverflow is returned when a credit would exceed 256 bits.
	ErrBalanceOverflow = errors.New("bank: balance overflow")

	errNilState       = errors.New("bank: state not configured")
	errNegativeAmount = errors.New("bank: negative amount")
)

type accountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Ledger moves native tokens between accounts held in the supplied state.
type Ledger struct {
	state   accountState
	emitter events.Emitter
}

// NewLedger binds a ledger to the state backend.
func NewLedger(state accountState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) account(addr [20]byte) (*types.Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// Balance returns the current balance for addr.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	acc, err := l.account(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// Transfer moves amount from one account to another. Zero amounts are no-ops.
// When from and to are the same identity only the balance is verified.
func (l *Ledger) Transfer(amount *big.Int, from, to [20]byte) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	fromAcc, err := l.account(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromAcc.Balance, amount)
	}
	if from == to {
		return nil
	}
	toAcc, err := l.account(to)
	if err != nil {
		return err
	}
	credited, err := addChecked(toAcc.Balance, amount)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = credited
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	if err := l.state.PutAccount(to, toAcc); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Credit mints amount into addr. It is reserved for genesis allocations.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	acc, err := l.account(addr)
	if err != nil {
		return err
	}
	credited, err := addChecked(acc.Balance, amount)
	if err != nil {
		return err
	}
	acc.Balance = credited
	if err := l.state.PutAccount(addr, acc); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{To: addr, Amount: new(big.Int).Set(amount), Reason: "genesis"})
	return nil
}

func addChecked(balance, amount *big.Int) (*big.Int, error) {
	current, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	delta, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, delta)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return sum.ToBig(), nil
}
