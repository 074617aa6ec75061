package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"nhbmarket/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr [20]byte) []byte {
	return prefixed(accountPrefix, addr[:])
}

// GetAccount returns the account stored under addr. Unknown identities yield a
// zero-balance account.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if !ok {
		return account, nil
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the provided account under addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	if _, overflow := uint256.FromBig(balance); overflow {
		return fmt.Errorf("balance overflow")
	}
	return m.KVPut(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: new(big.Int).Set(balance)})
}
