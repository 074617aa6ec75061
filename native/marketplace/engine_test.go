package marketplace

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"nhbmarket/core/events"
	"nhbmarket/core/types"
	"nhbmarket/native/bank"
	"nhbmarket/native/catalog"
	"nhbmarket/native/params"
)

type mockState struct {
	listings map[uint64]*catalog.Listing
	sales    map[uint64]*Sale
	escrows  map[uint64]*Escrow
	disputes map[uint64]*Dispute
	accounts map[[20]byte]*types.Account
	params   map[string][]byte
	nextSale uint64
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[uint64]*catalog.Listing),
		sales:    make(map[uint64]*Sale),
		escrows:  make(map[uint64]*Escrow),
		disputes: make(map[uint64]*Dispute),
		accounts: make(map[[20]byte]*types.Account),
		params:   make(map[string][]byte),
		nextSale: 1,
	}
}

func (m *mockState) ParamStoreSet(name string, value []byte) error {
	m.params[name] = append([]byte(nil), value...)
	return nil
}

func (m *mockState) ParamStoreGet(name string) ([]byte, bool, error) {
	value, ok := m.params[name]
	return value, ok, nil
}

func (m *mockState) ListingGet(id uint64) (*catalog.Listing, bool, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (m *mockState) ListingPut(l *catalog.Listing) error {
	m.listings[l.ID] = l.Clone()
	return nil
}

func (m *mockState) AllocateSaleID() (uint64, error) {
	id := m.nextSale
	m.nextSale++
	return id, nil
}

func (m *mockState) SaleGet(id uint64) (*Sale, bool, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *mockState) SalePut(s *Sale) error {
	m.sales[s.ID] = s.Clone()
	return nil
}

func (m *mockState) EscrowGet(id uint64) (*Escrow, bool, error) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (m *mockState) EscrowPut(e *Escrow) error {
	m.escrows[e.SaleID] = e.Clone()
	return nil
}

func (m *mockState) DisputeGet(id uint64) (*Dispute, bool, error) {
	d, ok := m.disputes[id]
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}

func (m *mockState) DisputePut(d *Dispute) error {
	m.disputes[d.SaleID] = d.Clone()
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr [20]byte, acc *types.Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) kinds() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

// failingTransfer rejects the transfer to a single destination.
type failingTransfer struct {
	next   Transferer
	failTo [20]byte
}

func (f failingTransfer) Transfer(amount *big.Int, from, to [20]byte) error {
	if to == f.failTo && from != to {
		return bank.ErrInsufficientFunds
	}
	return f.next.Transfer(amount, from, to)
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	operator = newTestAddress(0x01)
	seller   = newTestAddress(0x5E)
	buyer    = newTestAddress(0xB0)
	stranger = newTestAddress(0xEE)
)

type fixture struct {
	state   *mockState
	bank    *bank.Ledger
	engine  *Engine
	emitter *captureEmitter
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: newMockState(), emitter: &captureEmitter{}, now: 1_700_000_000}
	f.bank = bank.NewLedger(f.state)
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetTransferer(f.bank)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	if _, err := f.engine.InitializeOwner(operator, params.DefaultFeePercent); err != nil {
		t.Fatalf("initialize owner: %v", err)
	}
	f.fund(t, buyer, 1_000)
	f.fund(t, operator, 1_000)
	f.state.listings[1] = &catalog.Listing{ID: 1, Seller: seller, Price: big.NewInt(100), Quantity: 2}
	f.emitter.events = nil
	return f
}

func (f *fixture) fund(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	if err := f.bank.Credit(addr, big.NewInt(amount)); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, addr [20]byte) int64 {
	t.Helper()
	bal, err := f.bank.Balance(addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestPurchaseSplitsFeeAndRecordsEscrow(t *testing.T) {
	f := newFixture(t)
	sale, err := f.engine.Purchase(1, buyer)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if sale.ID != 1 {
		t.Fatalf("expected first sale id 1, got %d", sale.ID)
	}
	if sale.Refunded || sale.Rating != nil || sale.Review != nil {
		t.Fatalf("unexpected sale flags: %+v", sale)
	}
	if sale.CreatedAt != f.now || sale.Price.Int64() != 100 {
		t.Fatalf("unexpected sale record: %+v", sale)
	}
	listing := f.state.listings[1]
	if listing.Quantity != 1 || listing.SoldOut {
		t.Fatalf("unexpected listing after purchase: %+v", listing)
	}
	escrow, err := f.engine.Escrow(sale.ID)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if escrow.Amount.Int64() != 95 || escrow.Released {
		t.Fatalf("unexpected escrow: %+v", escrow)
	}
	if escrow.Buyer != buyer || escrow.Seller != seller {
		t.Fatalf("escrow parties not copied")
	}
	if got := f.balance(t, buyer); got != 900 {
		t.Fatalf("buyer balance = %d", got)
	}
	if got := f.balance(t, seller); got != 95 {
		t.Fatalf("seller balance = %d", got)
	}
	if got := f.balance(t, operator); got != 1_005 {
		t.Fatalf("operator balance = %d", got)
	}
	kinds := f.emitter.kinds()
	if kinds[len(kinds)-2] != EventTypePurchaseCompleted || kinds[len(kinds)-1] != EventTypeEscrowCreated {
		t.Fatalf("unexpected event order: %v", kinds)
	}
}

func TestPurchaseSellsOutAndRejectsFurtherBuys(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Purchase(1, buyer); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := f.engine.Purchase(1, buyer)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("expected sale id 2, got %d", second.ID)
	}
	listing := f.state.listings[1]
	if listing.Quantity != 0 || !listing.SoldOut {
		t.Fatalf("expected sold out listing, got %+v", listing)
	}
	if _, err := f.engine.Purchase(1, buyer); !errors.Is(err, ErrListingUnavailable) {
		t.Fatalf("expected ErrListingUnavailable, got %v", err)
	}
	if len(f.state.sales) != 2 || f.state.nextSale != 3 {
		t.Fatalf("failed purchase must not allocate a sale")
	}
}

func TestPurchaseUnknownListing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Purchase(42, buyer); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestPurchaseInsufficientFundsMovesNothing(t *testing.T) {
	f := newFixture(t)
	poor := newTestAddress(0x0F)
	f.fund(t, poor, 99)
	_, err := f.engine.Purchase(1, poor)
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, bank.ErrInsufficientFunds) {
		t.Fatalf("expected wrapped insufficient funds, got %v", err)
	}
	if got := f.balance(t, poor); got != 99 {
		t.Fatalf("poor balance = %d", got)
	}
	if got := f.balance(t, seller); got != 0 {
		t.Fatalf("seller must not be paid, got %d", got)
	}
	if f.state.listings[1].Quantity != 2 || len(f.state.sales) != 0 || len(f.state.escrows) != 0 {
		t.Fatalf("failed purchase must not mutate records")
	}
}

func TestPurchaseFeeTransferFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.engine.SetTransferer(failingTransfer{next: f.bank, failTo: operator})
	_, err := f.engine.Purchase(1, buyer)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if len(f.state.sales) != 0 || len(f.state.escrows) != 0 || f.state.listings[1].Quantity != 2 {
		t.Fatalf("records must not be written when the fee leg fails")
	}
}

func TestSelfPurchaseIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.fund(t, seller, 100)
	if _, err := f.engine.Purchase(1, seller); err != nil {
		t.Fatalf("self purchase: %v", err)
	}
	if got := f.balance(t, seller); got != 95 {
		t.Fatalf("seller keeps proceeds minus fee, got %d", got)
	}
}

func TestSplitPrice(t *testing.T) {
	cases := []struct {
		price, percent, fee int64
	}{
		{100, 5, 5},
		{99, 5, 4},
		{1, 5, 0},
		{19, 100, 19},
		{1234567, 0, 0},
		{333, 33, 109},
	}
	for _, tc := range cases {
		fee, proceeds := SplitPrice(big.NewInt(tc.price), uint64(tc.percent))
		if fee.Int64() != tc.fee {
			t.Fatalf("price %d at %d%%: fee = %s, want %d", tc.price, tc.percent, fee, tc.fee)
		}
		if new(big.Int).Add(fee, proceeds).Int64() != tc.price {
			t.Fatalf("fee + proceeds must equal price")
		}
	}
}

func TestInitializeOwnerOnlyOnce(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.InitializeOwner(stranger, 10); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	market, err := f.engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if market.Owner != operator || market.FeePercent != params.DefaultFeePercent {
		t.Fatalf("unexpected market: %+v", market)
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	state := newMockState()
	state.listings[1] = &catalog.Listing{ID: 1, Seller: seller, Price: big.NewInt(10), Quantity: 1}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetTransferer(bank.NewLedger(state))
	if _, err := engine.Purchase(1, buyer); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := engine.ResolveDispute(1, true, operator); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSetFeePercent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetFeePercent(stranger, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.SetFeePercent(operator, 101); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected ErrFeeOutOfRange, got %v", err)
	}
	if _, err := f.engine.SetFeePercent(operator, 20); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if _, err := f.engine.Purchase(1, buyer); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	escrow, err := f.engine.Escrow(1)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if escrow.Amount.Int64() != 80 {
		t.Fatalf("expected proceeds 80 at 20%%, got %s", escrow.Amount)
	}
}

func TestEscrowLedgerCreateAndRelease(t *testing.T) {
	state := newMockState()
	ledger := NewEscrowLedger(state)
	if _, err := ledger.Create(7, buyer, seller, big.NewInt(50)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ledger.Create(7, buyer, seller, big.NewInt(50)); !errors.Is(err, ErrEscrowExists) {
		t.Fatalf("expected ErrEscrowExists, got %v", err)
	}
	if _, err := ledger.MarkReleased(8); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
	released, err := ledger.MarkReleased(7)
	if err != nil || !released.Released {
		t.Fatalf("mark released: %v %+v", err, released)
	}
	// the ledger does not guard against a repeated release
	if _, err := ledger.MarkReleased(7); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
