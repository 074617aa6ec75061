package rpc

import (
	"net/http"

	"nhbmarket/crypto"
)

type balanceParams struct {
	Address string `json:"address"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type transferParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Caller string `json:"caller,omitempty"`
}

func (s *Server) handleBankBalance(_ *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params balanceParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	addr, failure := parseAddressParam("address", params.Address)
	if failure != nil {
		return nil, failure
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, domainError(err)
	}
	return balanceResult{Address: crypto.FormatAddress(addr), Balance: amountString(balance)}, nil
}

func (s *Server) handleBankTransfer(r *http.Request, req *RPCRequest) (interface{}, *methodError) {
	var params transferParams
	if failure := decodeParams(req, &params); failure != nil {
		return nil, failure
	}
	from, failure := s.caller(r, params.Caller)
	if failure != nil {
		return nil, failure
	}
	to, failure := parseAddressParam("to", params.To)
	if failure != nil {
		return nil, failure
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams("invalid_params", err.Error())
	}
	if err := s.node.Transfer(from, to, amount); err != nil {
		return nil, domainError(err)
	}
	balance, err := s.node.Balance(from)
	if err != nil {
		return nil, domainError(err)
	}
	return balanceResult{Address: crypto.FormatAddress(from), Balance: amountString(balance)}, nil
}
