package marketplace

import (
	"fmt"
	"math/big"
	"time"

	"nhbmarket/core/events"
	"nhbmarket/core/types"
	"nhbmarket/native/catalog"
	"nhbmarket/native/params"
)

// Transferer is the value transfer primitive the marketplace settles through.
// A transfer either fully happens or reports an error and leaves no effect.
type Transferer interface {
	Transfer(amount *big.Int, from, to [20]byte) error
}

type engineState interface {
	params.StoreState
	escrowState
	ListingGet(id uint64) (*catalog.Listing, bool, error)
	ListingPut(*catalog.Listing) error
	AllocateSaleID() (uint64, error)
	SaleGet(id uint64) (*Sale, bool, error)
	SalePut(*Sale) error
	DisputeGet(saleID uint64) (*Dispute, bool, error)
	DisputePut(*Dispute) error
}

// Engine settles purchases, tracks escrow bookkeeping and arbitrates
// disputes. It holds no state of its own beyond its collaborators; callers
// scope a unit of work by handing it a fresh state and transfer primitive.
type Engine struct {
	state    engineState
	ledger   *EscrowLedger
	transfer Transferer
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	if state == nil {
		e.ledger = nil
		return
	}
	e.ledger = NewEscrowLedger(state)
}

// SetTransferer configures the value transfer primitive.
func (e *Engine) SetTransferer(t Transferer) { e.transfer = t }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) move(amount *big.Int, from, to [20]byte) error {
	if e.transfer == nil {
		return errNilTransfer
	}
	if err := e.transfer.Transfer(amount, from, to); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) market() (params.Market, error) {
	return params.NewStore(e.state).RequireMarket()
}

// Sale returns the sale stored under id.
func (e *Engine) Sale(id uint64) (*Sale, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sale, ok, err := e.state.SaleGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}

// Escrow returns the escrow record paired with saleID.
func (e *Engine) Escrow(saleID uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.ledger.Get(saleID)
}

// Dispute returns the dispute opened against saleID.
func (e *Engine) Dispute(saleID uint64) (*Dispute, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	dispute, ok, err := e.state.DisputeGet(saleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDisputeNotFound
	}
	return dispute, nil
}
