package params

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when the marketplace owner was never set.
	ErrNotInitialized = errors.New("params: marketplace not initialized")
	// ErrFeeOutOfRange rejects fee percentages above MaxFeePercent.
	ErrFeeOutOfRange = errors.New("params: fee percent out of range")
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Market is the marketplace-wide configuration written once at bootstrap.
type Market struct {
	Owner      [20]byte
	FeePercent uint64
}

// Validate reports whether the configuration can be persisted.
func (m Market) Validate() error {
	if m.Owner == ([20]byte{}) {
		return fmt.Errorf("params: owner required")
	}
	if m.FeePercent > MaxFeePercent {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, m.FeePercent)
	}
	return nil
}

type storedMarket struct {
	Owner      string `json:"owner"`
	FeePercent uint64 `json:"feePercent"`
}

// Store provides typed accessors for marketplace parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetMarket persists the supplied configuration under the canonical parameter
// store key. Values are marshalled as JSON.
func (s *Store) SetMarket(market Market) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if err := market.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(storedMarket{
		Owner:      hex.EncodeToString(market.Owner[:]),
		FeePercent: market.FeePercent,
	})
	if err != nil {
		return fmt.Errorf("params: encode market: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyMarket, encoded)
}

// Market loads the persisted configuration. The boolean reports whether the
// marketplace has been initialised.
func (s *Store) Market() (Market, bool, error) {
	state, err := s.withState()
	if err != nil {
		return Market{}, false, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyMarket)
	if err != nil {
		return Market{}, false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return Market{}, false, nil
	}
	var stored storedMarket
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Market{}, false, fmt.Errorf("params: decode market: %w", err)
	}
	owner, err := hex.DecodeString(stored.Owner)
	if err != nil || len(owner) != 20 {
		return Market{}, false, fmt.Errorf("params: decode market owner")
	}
	market := Market{FeePercent: stored.FeePercent}
	copy(market.Owner[:], owner)
	return market, true, nil
}

// RequireMarket is Market that treats an uninitialised marketplace as an error.
func (s *Store) RequireMarket() (Market, error) {
	market, ok, err := s.Market()
	if err != nil {
		return Market{}, err
	}
	if !ok {
		return Market{}, ErrNotInitialized
	}
	return market, nil
}
