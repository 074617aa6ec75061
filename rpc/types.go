package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"nhbmarket/crypto"
	"nhbmarket/native/catalog"
	"nhbmarket/native/marketplace"
	"nhbmarket/native/params"
)

type listingJSON struct {
	ID        uint64 `json:"id"`
	Seller    string `json:"seller"`
	Category  string `json:"category,omitempty"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Quantity  uint64 `json:"quantity"`
	SoldOut   bool   `json:"soldOut"`
	CreatedAt int64  `json:"createdAt"`
}

type categoryJSON struct {
	Name      string `json:"name"`
	Creator   string `json:"creator"`
	CreatedAt int64  `json:"createdAt"`
}

type saleJSON struct {
	ID        uint64  `json:"id"`
	ListingID uint64  `json:"listingId"`
	Buyer     string  `json:"buyer"`
	Price     string  `json:"price"`
	CreatedAt int64   `json:"createdAt"`
	Refunded  bool    `json:"refunded"`
	Rating    *uint8  `json:"rating,omitempty"`
	Review    *string `json:"review,omitempty"`
}

type escrowJSON struct {
	SaleID   uint64 `json:"saleId"`
	Buyer    string `json:"buyer"`
	Seller   string `json:"seller"`
	Amount   string `json:"amount"`
	Released bool   `json:"released"`
}

type disputeJSON struct {
	SaleID     uint64  `json:"saleId"`
	Buyer      string  `json:"buyer"`
	Seller     string  `json:"seller"`
	Reason     string  `json:"reason"`
	OpenedAt   int64   `json:"openedAt"`
	Resolved   bool    `json:"resolved"`
	ResolvedAt *int64  `json:"resolvedAt,omitempty"`
	Ruling     *string `json:"ruling,omitempty"`
}

type paramsJSON struct {
	Owner      string `json:"owner"`
	FeePercent uint64 `json:"feePercent"`
}

func formatListing(l *catalog.Listing) listingJSON {
	return listingJSON{
		ID:        l.ID,
		Seller:    crypto.FormatAddress(l.Seller),
		Category:  l.Category,
		Title:     l.Title,
		Price:     amountString(l.Price),
		Quantity:  l.Quantity,
		SoldOut:   l.SoldOut,
		CreatedAt: l.CreatedAt,
	}
}

func formatCategory(c *catalog.Category) categoryJSON {
	return categoryJSON{Name: c.Name, Creator: crypto.FormatAddress(c.Creator), CreatedAt: c.CreatedAt}
}

func formatSale(s *marketplace.Sale) saleJSON {
	return saleJSON{
		ID:        s.ID,
		ListingID: s.ListingID,
		Buyer:     crypto.FormatAddress(s.Buyer),
		Price:     amountString(s.Price),
		CreatedAt: s.CreatedAt,
		Refunded:  s.Refunded,
		Rating:    s.Rating,
		Review:    s.Review,
	}
}

func formatEscrow(e *marketplace.Escrow) escrowJSON {
	return escrowJSON{
		SaleID:   e.SaleID,
		Buyer:    crypto.FormatAddress(e.Buyer),
		Seller:   crypto.FormatAddress(e.Seller),
		Amount:   amountString(e.Amount),
		Released: e.Released,
	}
}

func formatDispute(d *marketplace.Dispute) disputeJSON {
	out := disputeJSON{
		SaleID:     d.SaleID,
		Buyer:      crypto.FormatAddress(d.Buyer),
		Seller:     crypto.FormatAddress(d.Seller),
		Reason:     d.Reason,
		OpenedAt:   d.OpenedAt,
		Resolved:   d.Resolved,
		ResolvedAt: d.ResolvedAt,
	}
	if d.Ruling != nil {
		ruling := d.Ruling.String()
		out.Ruling = &ruling
	}
	return out
}

func formatParams(m params.Market) paramsJSON {
	return paramsJSON{Owner: crypto.FormatAddress(m.Owner), FeePercent: m.FeePercent}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseAmount accepts a base-10 integer string. Negative values are rejected.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

// decodeParams unmarshals the single params object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) *methodError {
	if len(req.Params) != 1 {
		return invalidParams("invalid_params", "exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return invalidParams("invalid_params", err.Error())
	}
	return nil
}

func parseAddressParam(name, value string) ([20]byte, *methodError) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams("invalid_params", fmt.Sprintf("%s: %v", name, err))
	}
	return addr, nil
}
