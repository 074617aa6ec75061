// core/genesis/loader.go
package genesis

import (
	"fmt"
	"math/big"

	"nhbmarket/native/catalog"
	"nhbmarket/native/params"
)

type ownerInitializer interface {
	InitializeOwner(owner [20]byte, feePercent uint64) (params.Market, error)
}

type crediter interface {
	Credit(addr [20]byte, amount *big.Int) error
}

type categoryRegistrar interface {
	RegisterCategory(caller [20]byte, name string) (*catalog.Category, error)
}

// Targets are the engines a genesis spec is applied through.
type Targets struct {
	Market  ownerInitializer
	Ledger  crediter
	Catalog categoryRegistrar
}

// Apply executes the genesis against the supplied engines: owner first, then
// balances in address order, then categories in declaration order. Callers
// wrap it in a unit of work so a failure leaves nothing behind.
func Apply(spec *GenesisSpec, targets Targets) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if targets.Market == nil || targets.Ledger == nil || targets.Catalog == nil {
		return fmt.Errorf("genesis targets must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	owner := spec.OwnerAddress()
	if _, err := targets.Market.InitializeOwner(owner, spec.Fee()); err != nil {
		return fmt.Errorf("initialize owner: %w", err)
	}
	for _, alloc := range spec.Allocations() {
		if err := targets.Ledger.Credit(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("credit allocation: %w", err)
		}
	}
	for _, name := range spec.Categories {
		if _, err := targets.Catalog.RegisterCategory(owner, name); err != nil {
			return fmt.Errorf("register category %q: %w", name, err)
		}
	}
	return nil
}
