package types

import "math/big"

// Account holds the native token balance of a single identity.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate balances without touching the
// stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
