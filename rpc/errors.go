package rpc

import (
	"errors"
	"net/http"

	"nhbmarket/native/bank"
	"nhbmarket/native/catalog"
	"nhbmarket/native/marketplace"
	"nhbmarket/native/params"
)

const (
	codeNotFound          = -32040
	codeForbidden         = -32041
	codeConflict          = -32042
	codeUnavailable       = -32043
	codeInsufficientFunds = -32044
	codeNotInitialized    = -32045
)

type methodError struct {
	status int
	err    RPCError
}

func invalidParams(message string, data interface{}) *methodError {
	return &methodError{status: http.StatusBadRequest, err: RPCError{Code: codeInvalidParams, Message: message, Data: data}}
}

func unauthorized(err error) *methodError {
	return &methodError{status: http.StatusUnauthorized, err: RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: err.Error()}}
}

func unavailable(message string) *methodError {
	return &methodError{status: http.StatusServiceUnavailable, err: RPCError{Code: codeServerError, Message: message}}
}

// domainError maps engine sentinels onto JSON-RPC codes. The transfer case is
// checked first so a wrapped ledger failure reports as a funds problem.
func domainError(err error) *methodError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, marketplace.ErrTransferFailed), errors.Is(err, bank.ErrInsufficientFunds):
		status, code, message = http.StatusConflict, codeInsufficientFunds, "transfer_failed"
	case errors.Is(err, params.ErrNotInitialized):
		status, code, message = http.StatusServiceUnavailable, codeNotInitialized, "not_initialized"
	case errors.Is(err, catalog.ErrListingNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, marketplace.ErrSaleNotFound),
		errors.Is(err, marketplace.ErrEscrowNotFound),
		errors.Is(err, marketplace.ErrDisputeNotFound):
		status, code, message = http.StatusNotFound, codeNotFound, "not_found"
	case errors.Is(err, marketplace.ErrUnauthorized),
		errors.Is(err, marketplace.ErrDisputeWindowClosedOrUnauthorized),
		errors.Is(err, catalog.ErrUnauthorized),
		errors.Is(err, catalog.ErrNotListingOwner):
		status, code, message = http.StatusForbidden, codeForbidden, "forbidden"
	case errors.Is(err, marketplace.ErrDisputeExists),
		errors.Is(err, marketplace.ErrAlreadyResolved),
		errors.Is(err, marketplace.ErrAlreadyInitialized),
		errors.Is(err, marketplace.ErrEscrowExists),
		errors.Is(err, catalog.ErrCategoryExists):
		status, code, message = http.StatusConflict, codeConflict, "conflict"
	case errors.Is(err, marketplace.ErrListingUnavailable):
		status, code, message = http.StatusConflict, codeUnavailable, "unavailable"
	case errors.Is(err, marketplace.ErrInvalidReason),
		errors.Is(err, params.ErrFeeOutOfRange),
		errors.Is(err, catalog.ErrInvalidListing),
		errors.Is(err, catalog.ErrInvalidCategory),
		errors.Is(err, bank.ErrBalanceOverflow):
		status, code, message = http.StatusBadRequest, codeInvalidParams, "invalid_params"
	}
	return &methodError{status: status, err: RPCError{Code: code, Message: message, Data: err.Error()}}
}
