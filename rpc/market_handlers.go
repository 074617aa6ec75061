package rpc

import (
	"net/http"
	"strings"

	"nhbmarket/crypto"
	"nhbmarket/indexer"
	"nhbmarket/observability/logging"
)

type purchaseParams struct {
	ListingID uint64 `json:"listingId"`
	Caller    string `json:"caller,omitempty"`
}

type purchaseResult struct {
	Sale   saleJSON   `json:"sale"`
	Escrow escrowJSON `json:"escrow"`
}

type openDisputeParams struct {
	SaleID uint64 `json:"saleId"`
	Reason string `json:"reason"`
	Caller string `json:"caller,omitempty"`
}

type resolveDisputeParams struct {
	SaleID     uint64 `json:"saleId"`
	FavorBuyer *bool  `json:"favorBuyer"`
	Caller     string `json:"caller,omitempty"`
}

type saleIDParams struct {
	SaleID uint64 `json:"saleId"`
}

type setFeeParams struct {
	FeePercent *uint64 `json:"feePercent"`
	Caller     string  `json:"caller,omitempty"`
}

type listEventsParams struct {
	Type      string `json:"type,omitempty"`
	SaleID    uint64 `json:"saleId,omitempty"`
	ListingID uint64 `json:"listingId,omitempty"`
	Actor     string `json:"actor,omitempty"`
	AfterSeq  uint64 `json:"afterSeq,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) caller(r *http.Request, claimed string) ([20]byte, *methodError) {
	addr, err := s.auth.Caller(r, claimed)
	if err != nil {
		s.logger.Warn("caller rejected", "error", err, "source", s.clientSource(r),
			logging.MaskField("authorization", r.Header.Get("Authorization")))
		return [20]byte{}, unauthorized(err)
	}
	return addr, nil
}

func (s *Server) handleMarketPurchase(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params purchaseParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	buyer, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	if params.ListingID == 0 {
		return nil, invalidParams("invalid_params", "listingId required")
	}
	sale, err := s.node.Purchase(params.ListingID, buyer)
	if err != nil {
		return nil, domainError(err)
	}
	escrow, err := s.node.Escrow(sale.ID)
	if err != nil {
		return nil, domainError(err)
	}
	return purchaseResult{Sale: formatSale(sale), Escrow: formatEscrow(escrow)}, nil
}

func (s *Server) handleMarketOpenDispute(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params openDisputeParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	dispute, err := s.node.OpenDispute(params.SaleID, caller, params.Reason)
	if err != nil {
		return nil, domainError(err)
	}
	return formatDispute(dispute), nil
}

func (s *Server) handleMarketResolveDispute(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params resolveDisputeParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	if params.FavorBuyer == nil {
		return nil, invalidParams("invalid_params", "favorBuyer required")
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	dispute, err := s.node.ResolveDispute(params.SaleID, *params.FavorBuyer, caller)
	if err != nil {
		return nil, domainError(err)
	}
	return formatDispute(dispute), nil
}

func (s *Server) handleMarketGetSale(_ *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params saleIDParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	sale, err := s.node.Sale(params.SaleID)
	if err != nil {
		return nil, domainError(err)
	}
	return formatSale(sale), nil
}

func (s *Server) handleMarketGetEscrow(_ *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params saleIDParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	escrow, err := s.node.Escrow(params.SaleID)
	if err != nil {
		return nil, domainError(err)
	}
	return formatEscrow(escrow), nil
}

func (s *Server) handleMarketGetDispute(_ *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params saleIDParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	dispute, err := s.node.Dispute(params.SaleID)
	if err != nil {
		return nil, domainError(err)
	}
	return formatDispute(dispute), nil
}

func (s *Server) handleMarketParams(_ *http.Request, _ *RPCRequest) (interface{}, *methodError) {
	market, err := s.node.Params()
	if err != nil {
		return nil, domainError(err)
	}
	return formatParams(market), nil
}

func (s *Server) handleMarketSetFeePercent(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params setFeeParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	if params.FeePercent == nil {
		return nil, invalidParams("invalid_params", "feePercent required")
	}
	caller, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	market, err := s.node.SetFeePercent(caller, *params.FeePercent)
	if err != nil {
		return nil, domainError(err)
	}
	return formatParams(market), nil
}

func (s *Server) handleMarketListEvents(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	if s.events == nil {
		return nil, unavailable("event index disabled")
	}
	var params listEventsParams
	if len(req.Params) > 0 {
		if failure := decodeParams(req, &params); failure != nil {
			return nil, failure
		}
	}
	filter := indexer.Filter{
		Type:      strings.TrimSpace(params.Type),
		SaleID:    params.SaleID,
		ListingID: params.ListingID,
		AfterSeq:  params.AfterSeq,
		Limit:     params.Limit,
	}
	if actor := strings.TrimSpace(params.Actor); actor != "" {
		addr, failure := parseAddressParam("actor", actor)
		if failure != nil {
			return nil, failure
		}
		filter.Actor = crypto.FormatAddress(addr)
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		return nil, domainError(err)
	}
	return records, nil
}
