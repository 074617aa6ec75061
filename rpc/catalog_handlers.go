package rpc

import (
	"net/http"

	"nhbmarket/native/catalog"
)

type createListingParams struct {
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
	Caller   string `json:"caller,omitempty"`
}

type updateListingParams struct {
	ID       uint64  `json:"id"`
	Title    *string `json:"title,omitempty"`
	Category *string `json:"category,omitempty"`
	Price    *string `json:"price,omitempty"`
	Quantity *uint64 `json:"quantity,omitempty"`
	Caller   string  `json:"caller,omitempty"`
}

type listingIDParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller,omitempty"`
}

type registerCategoryParams struct {
	Name   string `json:"name"`
	Caller string `json:"caller,omitempty"`
}

func (s *Server) handleCatalogCreateListing(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params createListingParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	seller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		return nil, invalidParams("invalid_params", err.Error())
	}
	listing, err := s.node.CreateListing(seller, params.Category, params.Title, price, params.Quantity)
	if err != nil {
		return nil, domainError(err)
	}
	return formatListing(listing), nil
}

func (s *Server) handleCatalogUpdateListing(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params updateListingParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	update := catalog.ListingUpdate{
		Title:    params.Title,
		Category: params.Category,
		Quantity: params.Quantity,
	}
	if params.Price != nil {
		price, err := parseAmount(*params.Price)
		if err != nil {
			return nil, invalidParams("invalid_params", err.Error())
		}
		update.Price = price
	}
	listing, err := s.node.UpdateListing(caller, params.ID, update)
	if err != nil {
		return nil, domainError(err)
	}
	return formatListing(listing), nil
}

func (s *Server) handleCatalogRemoveListing(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params listingIDParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	if err := s.node.RemoveListing(caller, params.ID); err != nil {
		return nil, domainError(err)
	}
	return map[string]bool{"removed": true}, nil
}

func (s *Server) handleCatalogGetListing(_ *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params listingIDParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	listing, err := s.node.Listing(params.ID)
	if err != nil {
		return nil, domainError(err)
	}
	return formatListing(listing), nil
}

func (s *Server) handleCatalogRegisterCategory(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params registerCategoryParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	category, err := s.node.RegisterCategory(caller, params.Name)
	if err != nil {
		return nil, domainError(err)
	}
	return formatCategory(category), nil
}
