package state

import (
	"fmt"
	"math/big"

	"nhbmarket/native/catalog"
)

type storedListing struct {
	ID        uint64
	Seller    [20]byte
	Category  string
	Title     string
	Price     *big.Int
	Quantity  uint64
	SoldOut   bool
	CreatedAt uint64
}

func newStoredListing(l *catalog.Listing) *storedListing {
	stored := &storedListing{
		ID:        l.ID,
		Seller:    l.Seller,
		Category:  l.Category,
		Title:     l.Title,
		Price:     big.NewInt(0),
		Quantity:  l.Quantity,
		SoldOut:   l.SoldOut,
		CreatedAt: uint64(l.CreatedAt),
	}
	if l.Price != nil {
		stored.Price = new(big.Int).Set(l.Price)
	}
	return stored
}

func (s *storedListing) toListing() *catalog.Listing {
	listing := &catalog.Listing{
		ID:        s.ID,
		Seller:    s.Seller,
		Category:  s.Category,
		Title:     s.Title,
		Price:     big.NewInt(0),
		Quantity:  s.Quantity,
		SoldOut:   s.SoldOut,
		CreatedAt: int64(s.CreatedAt),
	}
	if s.Price != nil {
		listing.Price = new(big.Int).Set(s.Price)
	}
	return listing
}

type storedCategory struct {
	Name      string
	Creator   [20]byte
	CreatedAt uint64
}

// ListingGet loads the listing stored under id.
func (m *Manager) ListingGet(id uint64) (*catalog.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(idKey(listingPrefix, id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toListing(), true, nil
}

// ListingPut persists a listing under its id.
func (m *Manager) ListingPut(l *catalog.Listing) error {
	if l == nil {
		return fmt.Errorf("catalog: nil listing")
	}
	if l.ID == 0 {
		return fmt.Errorf("catalog: listing id must be assigned")
	}
	return m.KVPut(idKey(listingPrefix, l.ID), newStoredListing(l))
}

// ListingDelete removes the listing stored under id.
func (m *Manager) ListingDelete(id uint64) error {
	return m.KVDelete(idKey(listingPrefix, id))
}

// CategoryGet loads a registered category.
func (m *Manager) CategoryGet(name string) (*catalog.Category, bool, error) {
	if name == "" {
		return nil, false, nil
	}
	var stored storedCategory
	ok, err := m.KVGet(prefixed(categoryPrefix, []byte(name)), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &catalog.Category{Name: stored.Name, Creator: stored.Creator, CreatedAt: int64(stored.CreatedAt)}, true, nil
}

// CategoryPut persists a category under its name.
func (m *Manager) CategoryPut(c *catalog.Category) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("catalog: category name required")
	}
	return m.KVPut(prefixed(categoryPrefix, []byte(c.Name)), &storedCategory{
		Name:      c.Name,
		Creator:   c.Creator,
		CreatedAt: uint64(c.CreatedAt),
	})
}
