package catalog

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"nhbmarket/core/events"
	"nhbmarket/core/types"
	"nhbmarket/native/params"
)

var (
	ErrListingNotFound  = errors.New("catalog: listing not found")
	ErrNotListingOwner  = errors.New("catalog: caller is not the lister")
	ErrCategoryNotFound = errors.New("catalog: category not registered")
	ErrCategoryExists   = errors.New("catalog: category already registered")
	ErrUnauthorized     = errors.New("catalog: caller is not the operator")
	ErrInvalidListing   = errors.New("catalog: invalid listing")
	ErrInvalidCategory  = errors.New("catalog: invalid category name")

	errNilState = errors.New("catalog: state not configured")
)

type engineState interface {
	params.StoreState
	ListingGet(id uint64) (*Listing, bool, error)
	ListingPut(*Listing) error
	ListingDelete(id uint64) error
	AllocateListingID() (uint64, error)
	CategoryGet(name string) (*Category, bool, error)
	CategoryPut(*Category) error
}

// Engine implements listing and category bookkeeping. Only the original lister
// may mutate a listing.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a catalog engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// Listing returns the listing stored under id.
func (e *Engine) Listing(id uint64) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	listing, ok, err := e.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (e *Engine) ownedListing(caller [20]byte, id uint64) (*Listing, error) {
	listing, err := e.Listing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrNotListingOwner
	}
	return listing, nil
}

func (e *Engine) ensureCategory(name string) error {
	if name == "" {
		return nil
	}
	_, ok, err := e.state.CategoryGet(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	return nil
}

// CreateListing stores a new listing owned by seller and returns its id.
func (e *Engine) CreateListing(seller [20]byte, category, title string, price *big.Int, quantity uint64) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidListing)
	}
	if quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidListing)
	}
	draft, err := SanitizeListing(&Listing{
		Seller:    seller,
		Category:  category,
		Title:     title,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidListing, err)
	}
	if err := e.ensureCategory(draft.Category); err != nil {
		return nil, err
	}
	id, err := e.state.AllocateListingID()
	if err != nil {
		return nil, err
	}
	draft.ID = id
	if err := e.state.ListingPut(draft); err != nil {
		return nil, err
	}
	e.emit(NewListingEvent(EventTypeListingCreated, draft))
	return draft.Clone(), nil
}

// UpdateListing applies the non-nil fields of update.
func (e *Engine) UpdateListing(caller [20]byte, id uint64, update ListingUpdate) (*Listing, error) {
	listing, err := e.ownedListing(caller, id)
	if err != nil {
		return nil, err
	}
	if update.Title != nil {
		listing.Title = *update.Title
	}
	if update.Category != nil {
		listing.Category = *update.Category
	}
	if update.Price != nil {
		listing.Price = new(big.Int).Set(update.Price)
	}
	if update.Quantity != nil {
		listing.Quantity = *update.Quantity
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidListing, err)
	}
	if err := e.ensureCategory(sanitized.Category); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewListingEvent(EventTypeListingUpdated, sanitized))
	return sanitized.Clone(), nil
}

// RemoveListing deletes a listing. Existing sales keep referring to its id.
func (e *Engine) RemoveListing(caller [20]byte, id uint64) error {
	listing, err := e.ownedListing(caller, id)
	if err != nil {
		return err
	}
	if err := e.state.ListingDelete(id); err != nil {
		return err
	}
	e.emit(NewListingEvent(EventTypeListingRemoved, listing))
	return nil
}

// RegisterCategory records a new category name. Only the operator may do so.
func (e *Engine) RegisterCategory(caller [20]byte, name string) (*Category, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := params.NewStore(e.state).RequireMarket()
	if err != nil {
		return nil, err
	}
	if caller != market.Owner {
		return nil, ErrUnauthorized
	}
	normalized := NormalizeCategory(name)
	if normalized == "" || len(normalized) > maxCategoryLength || strings.ContainsAny(normalized, " \t\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, name)
	}
	if _, ok, err := e.state.CategoryGet(normalized); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryExists, normalized)
	}
	category := &Category{Name: normalized, Creator: caller, CreatedAt: e.now()}
	if err := e.state.CategoryPut(category); err != nil {
		return nil, err
	}
	e.emit(NewCategoryRegisteredEvent(category))
	return category, nil
}

// Category returns a registered category.
func (e *Engine) Category(name string) (*Category, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	category, ok, err := e.state.CategoryGet(NormalizeCategory(name))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}
