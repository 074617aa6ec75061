package catalog

import (
	"errors"
	"math/big"
	"testing"

	"nhbmarket/native/params"
)

type mockState struct {
	listings   map[uint64]*Listing
	categories map[string]*Category
	params     map[string][]byte
	nextID     uint64
}

func newMockState() *mockState {
	return &mockState{
		listings:   make(map[uint64]*Listing),
		categories: make(map[string]*Category),
		params:     make(map[string][]byte),
		nextID:     1,
	}
}

func (m *mockState) ParamStoreSet(name string, value []byte) error {
	m.params[name] = append([]byte(nil), value...)
	return nil
}

func (m *mockState) ParamStoreGet(name string) ([]byte, bool, error) {
	v, ok := m.params[name]
	return v, ok, nil
}

func (m *mockState) ListingGet(id uint64) (*Listing, bool, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (m *mockState) ListingPut(l *Listing) error {
	m.listings[l.ID] = l.Clone()
	return nil
}

func (m *mockState) ListingDelete(id uint64) error {
	delete(m.listings, id)
	return nil
}

func (m *mockState) AllocateListingID() (uint64, error) {
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *mockState) CategoryGet(name string) (*Category, bool, error) {
	c, ok := m.categories[name]
	if !ok {
		return nil, false, nil
	}
	clone := *c
	return &clone, true, nil
}

func (m *mockState) CategoryPut(c *Category) error {
	clone := *c
	m.categories[c.Name] = &clone
	return nil
}

func testAddress(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *mockState, [20]byte) {
	t.Helper()
	state := newMockState()
	owner := testAddress(0x0F)
	if err := params.NewStore(state).SetMarket(params.Market{Owner: owner, FeePercent: 5}); err != nil {
		t.Fatalf("set market: %v", err)
	}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state, owner
}

func TestCreateListingAllocatesSequentialIDs(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := testAddress(0x11)
	first, err := engine.CreateListing(seller, "", "lamp", big.NewInt(100), 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := engine.CreateListing(seller, "", "chair", big.NewInt(40), 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("unexpected ids %d, %d", first.ID, second.ID)
	}
	if first.SoldOut || first.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected listing %+v", first)
	}
	if _, err := engine.CreateListing(seller, "", "bad", big.NewInt(0), 1); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("expected invalid listing, got %v", err)
	}
	if _, err := engine.CreateListing(seller, "", "bad", big.NewInt(1), 0); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("expected invalid listing, got %v", err)
	}
	if state.nextID != 3 {
		t.Fatalf("failed creations must not consume ids, next=%d", state.nextID)
	}
}

func TestOnlyListerMayMutate(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := testAddress(0x11)
	other := testAddress(0x22)
	listing, err := engine.CreateListing(seller, "", "lamp", big.NewInt(100), 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	price := big.NewInt(80)
	if _, err := engine.UpdateListing(other, listing.ID, ListingUpdate{Price: price}); !errors.Is(err, ErrNotListingOwner) {
		t.Fatalf("expected ErrNotListingOwner, got %v", err)
	}
	if err := engine.RemoveListing(other, listing.ID); !errors.Is(err, ErrNotListingOwner) {
		t.Fatalf("expected ErrNotListingOwner, got %v", err)
	}
	updated, err := engine.UpdateListing(seller, listing.ID, ListingUpdate{Price: price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price.Cmp(price) != 0 {
		t.Fatalf("price not updated")
	}
	if err := engine.RemoveListing(seller, listing.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := engine.Listing(listing.ID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestUpdateQuantityKeepsSoldOutFlag(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := testAddress(0x11)
	listing, err := engine.CreateListing(seller, "", "lamp", big.NewInt(100), 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zero := uint64(0)
	updated, err := engine.UpdateListing(seller, listing.ID, ListingUpdate{Quantity: &zero})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.SoldOut {
		t.Fatalf("expected sold out when quantity is zero")
	}
	three := uint64(3)
	updated, err = engine.UpdateListing(seller, listing.ID, ListingUpdate{Quantity: &three})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.SoldOut {
		t.Fatalf("restocked listing must not be sold out")
	}
}

func TestRegisterCategory(t *testing.T) {
	engine, _, owner := newTestEngine(t)
	seller := testAddress(0x11)
	if _, err := engine.RegisterCategory(seller, "books"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.CreateListing(seller, "books", "novel", big.NewInt(10), 1); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if _, err := engine.RegisterCategory(owner, " Books "); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.RegisterCategory(owner, "books"); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	if _, err := engine.RegisterCategory(owner, "\uff22\uff2f\uff2f\uff2b\uff33"); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("full-width name must fold to books, got %v", err)
	}
	listing, err := engine.CreateListing(seller, "BOOKS", "novel", big.NewInt(10), 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if listing.Category != "books" {
		t.Fatalf("category not normalised: %q", listing.Category)
	}
}

func TestRegisterCategoryRequiresInitializedMarket(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if _, err := engine.RegisterCategory(testAddress(1), "books"); !errors.Is(err, params.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestListingDecrement(t *testing.T) {
	listing := &Listing{ID: 9, Price: big.NewInt(1), Quantity: 1}
	if err := listing.Decrement(); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !listing.SoldOut || listing.Available() {
		t.Fatalf("expected sold out listing")
	}
	if err := listing.Decrement(); err == nil {
		t.Fatalf("expected error decrementing an empty listing")
	}
}
