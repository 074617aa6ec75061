package marketplace

import (
	"errors"

	"nhbmarket/native/catalog"
	"nhbmarket/native/params"
)

var (
	ErrListingNotFound    = catalog.ErrListingNotFound
	ErrListingUnavailable = errors.New("marketplace: listing sold out")
	ErrTransferFailed     = errors.New("marketplace: value transfer failed")

	ErrSaleNotFound   = errors.New("marketplace: sale not found")
	ErrEscrowNotFound = errors.New("marketplace: escrow not found")
	ErrEscrowExists   = errors.New("marketplace: escrow already exists for sale")

	// ErrDisputeWindowClosedOrUnauthorized covers a caller that is not the
	// buyer, an escrow that was already released and an expired window.
	ErrDisputeWindowClosedOrUnauthorized = errors.New("marketplace: dispute window closed or caller unauthorized")
	ErrDisputeExists                     = errors.New("marketplace: dispute already exists for sale")
	ErrInvalidReason                     = errors.New("marketplace: invalid dispute reason")

	ErrUnauthorized       = errors.New("marketplace: caller is not the operator")
	ErrDisputeNotFound    = errors.New("marketplace: dispute not found")
	ErrAlreadyResolved    = errors.New("marketplace: dispute already resolved")
	ErrAlreadyInitialized = errors.New("marketplace: owner already initialized")
	ErrNotInitialized     = params.ErrNotInitialized
	ErrFeeOutOfRange      = params.ErrFeeOutOfRange

	errNilState    = errors.New("marketplace: state not configured")
	errNilTransfer = errors.New("marketplace: transfer primitive not configured")
)
