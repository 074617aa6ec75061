package marketplace

import (
	"fmt"

	"nhbmarket/native/params"
)

// InitializeOwner records the operator identity and the initial fee percent.
// It may run exactly once.
func (e *Engine) InitializeOwner(owner [20]byte, feePercent uint64) (params.Market, error) {
	if err := e.ready(); err != nil {
		return params.Market{}, err
	}
	store := params.NewStore(e.state)
	if _, ok, err := store.Market(); err != nil {
		return params.Market{}, err
	} else if ok {
		return params.Market{}, ErrAlreadyInitialized
	}
	market := params.Market{Owner: owner, FeePercent: feePercent}
	if err := store.SetMarket(market); err != nil {
		return params.Market{}, err
	}
	e.emit(newParamsEvent(market, 0))
	return market, nil
}

// SetFeePercent changes the platform fee applied to future purchases.
func (e *Engine) SetFeePercent(caller [20]byte, feePercent uint64) (params.Market, error) {
	if err := e.ready(); err != nil {
		return params.Market{}, err
	}
	store := params.NewStore(e.state)
	market, err := store.RequireMarket()
	if err != nil {
		return params.Market{}, err
	}
	if caller != market.Owner {
		return params.Market{}, ErrUnauthorized
	}
	if feePercent > params.MaxFeePercent {
		return params.Market{}, fmt.Errorf("%w: %d", ErrFeeOutOfRange, feePercent)
	}
	previous := market.FeePercent
	market.FeePercent = feePercent
	if err := store.SetMarket(market); err != nil {
		return params.Market{}, err
	}
	e.emit(newParamsEvent(market, previous))
	return market, nil
}

// Params returns the current marketplace configuration.
func (e *Engine) Params() (params.Market, error) {
	if err := e.ready(); err != nil {
		return params.Market{}, err
	}
	return e.market()
}
