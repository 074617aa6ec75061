// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"nhbmarket/crypto"
	"nhbmarket/native/catalog"
	"nhbmarket/native/params"
)

// GenesisSpec describes the one-time marketplace bootstrap: the operator,
// the initial fee, token allocations and the categories seeded at launch.
type GenesisSpec struct {
	Owner      string            `json:"owner"`
	FeePercent *uint64           `json:"feePercent,omitempty"`
	Alloc      map[string]string `json:"alloc"` // bech32 addr -> amount
	Categories []string          `json:"categories,omitempty"`

	owner  [20]byte
	allocs []Allocation
}

// Allocation is a resolved genesis balance.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document. Unknown
// fields are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// Validate resolves addresses and amounts. It must succeed before the genesis
// is applied.
func (s *GenesisSpec) Validate() error {
	owner, err := crypto.ParseAddress(strings.TrimSpace(s.Owner))
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	s.owner = owner
	if s.FeePercent != nil && *s.FeePercent > params.MaxFeePercent {
		return fmt.Errorf("feePercent %d exceeds %d", *s.FeePercent, params.MaxFeePercent)
	}

	allocs := make([]Allocation, 0, len(s.Alloc))
	for addr, rawAmount := range s.Alloc {
		parsed, err := crypto.ParseAddress(strings.TrimSpace(addr))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(rawAmount), 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("alloc %q: invalid amount %q", addr, rawAmount)
		}
		allocs = append(allocs, Allocation{Address: parsed, Amount: amount})
	}
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].Address[:], allocs[j].Address[:]) < 0
	})
	s.allocs = allocs

	seen := make(map[string]struct{}, len(s.Categories))
	for _, name := range s.Categories {
		key := catalog.NormalizeCategory(name)
		if key == "" {
			return fmt.Errorf("categories: empty name")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("categories: duplicate %q", name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (s *GenesisSpec) OwnerAddress() [20]byte { return s.owner }

// Fee returns the configured fee percent or the default.
func (s *GenesisSpec) Fee() uint64 {
	if s.FeePercent == nil {
		return params.DefaultFeePercent
	}
	return *s.FeePercent
}

// Allocations returns the resolved balances ordered by address.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocs))
	for i, a := range s.allocs {
		out[i] = Allocation{Address: a.Address, Amount: new(big.Int).Set(a.Amount)}
	}
	return out
}
