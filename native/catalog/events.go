package catalog

import (
	"strconv"

	"nhbmarket/core/types"
	"nhbmarket/crypto"
)

const (
	EventTypeListingCreated     = "catalog.listing.created"
	EventTypeListingUpdated     = "catalog.listing.updated"
	EventTypeListingRemoved     = "catalog.listing.removed"
	EventTypeCategoryRegistered = "catalog.category.registered"
)

// NewListingEvent returns the canonical payload for a listing lifecycle event.
func NewListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(l.ID, 10)
	attrs["seller"] = crypto.FormatAddress(l.Seller)
	attrs["price"] = l.Price.String()
	attrs["quantity"] = strconv.FormatUint(l.Quantity, 10)
	attrs["soldOut"] = strconv.FormatBool(l.SoldOut)
	if l.Category != "" {
		attrs["category"] = l.Category
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewCategoryRegisteredEvent returns the payload for a new category.
func NewCategoryRegisteredEvent(c *Category) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["name"] = c.Name
		attrs["creator"] = crypto.FormatAddress(c.Creator)
	}
	return &types.Event{Type: EventTypeCategoryRegistered, Attributes: attrs}
}
