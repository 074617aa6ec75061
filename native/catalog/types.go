package catalog

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleLength    = 256
	maxCategoryLength = 64
)

// Listing is a sellable item with a unit price and remaining quantity.
// SoldOut always mirrors Quantity == 0.
type Listing struct {
	ID        uint64
	Seller    [20]byte
	Category  string
	Title     string
	Price     *big.Int
	Quantity  uint64
	SoldOut   bool
	CreatedAt int64
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Available reports whether at least one unit remains.
func (l *Listing) Available() bool {
	return l != nil && !l.SoldOut && l.Quantity > 0
}

// Decrement removes one unit and keeps the sold-out flag consistent.
func (l *Listing) Decrement() error {
	if l.Quantity == 0 {
		return fmt.Errorf("catalog: listing %d has no remaining quantity", l.ID)
	}
	l.Quantity--
	l.SoldOut = l.Quantity == 0
	return nil
}

// Category groups listings under an operator-registered name.
type Category struct {
	Name      string
	Creator   [20]byte
	CreatedAt int64
}

// ListingUpdate carries the optional fields of an update; nil fields are left
// untouched.
type ListingUpdate struct {
	Title    *string
	Category *string
	Price    *big.Int
	Quantity *uint64
}

// NormalizeCategory trims, lower-cases and NFKC-folds a category name so
// width and compatibility variants name the same category.
func NormalizeCategory(name string) string {
	return norm.NFKC.String(strings.ToLower(strings.TrimSpace(name)))
}

// SanitizeListing validates a listing and returns a normalised copy.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("catalog: nil listing")
	}
	clone := l.Clone()
	clone.Title = strings.TrimSpace(clone.Title)
	clone.Category = NormalizeCategory(clone.Category)
	if len(clone.Title) > maxTitleLength {
		return nil, fmt.Errorf("catalog: title exceeds %d bytes", maxTitleLength)
	}
	if len(clone.Category) > maxCategoryLength {
		return nil, fmt.Errorf("catalog: category exceeds %d bytes", maxCategoryLength)
	}
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("catalog: price must be positive")
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("catalog: seller required")
	}
	clone.SoldOut = clone.Quantity == 0
	return clone, nil
}
