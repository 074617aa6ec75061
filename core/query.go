package core

import (
	"math/big"

	"nhbmarket/native/catalog"
	"nhbmarket/native/marketplace"
	"nhbmarket/native/params"
)

// Listing returns the listing stored under id.
func (n *Node) Listing(id uint64) (*catalog.Listing, error) {
	var listing *catalog.Listing
	err := n.read(func(u *unit) error {
		var err error
		listing, err = u.catalog.Listing(id)
		return err
	})
	return listing, err
}

// Category returns a registered category.
func (n *Node) Category(name string) (*catalog.Category, error) {
	var category *catalog.Category
	err := n.read(func(u *unit) error {
		var err error
		category, err = u.catalog.Category(name)
		return err
	})
	return category, err
}

// Sale returns the sale stored under id.
func (n *Node) Sale(id uint64) (*marketplace.Sale, error) {
	var sale *marketplace.Sale
	err := n.read(func(u *unit) error {
		var err error
		sale, err = u.market.Sale(id)
		return err
	})
	return sale, err
}

// Escrow returns the escrow paired with saleID.
func (n *Node) Escrow(saleID uint64) (*marketplace.Escrow, error) {
	var escrow *marketplace.Escrow
	err := n.read(func(u *unit) error {
		var err error
		escrow, err = u.market.Escrow(saleID)
		return err
	})
	return escrow, err
}

// Dispute returns the dispute opened against saleID.
func (n *Node) Dispute(saleID uint64) (*marketplace.Dispute, error) {
	var dispute *marketplace.Dispute
	err := n.read(func(u *unit) error {
		var err error
		dispute, err = u.market.Dispute(saleID)
		return err
	})
	return dispute, err
}

// Params returns the marketplace configuration.
func (n *Node) Params() (params.Market, error) {
	var market params.Market
	err := n.read(func(u *unit) error {
		var err error
		market, err = u.market.Params()
		return err
	})
	return market, err
}

// Balance returns the native balance of addr.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.read(func(u *unit) error {
		var err error
		balance, err = u.ledger.Balance(addr)
		return err
	})
	return balance, err
}

// Counters reports the ids the next listing and sale will receive.
func (n *Node) Counters() (nextListing, nextSale uint64, err error) {
	err = n.read(func(u *unit) error {
		var err error
		if nextListing, err = u.manager.NextListingID(); err != nil {
			return err
		}
		nextSale, err = u.manager.NextSaleID()
		return err
	})
	return nextListing, nextSale, err
}
