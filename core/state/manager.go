package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nhbmarket/storage"
)

// Manager provides typed access to marketplace records on top of a key-value
// store. Writes go straight to the store; callers wanting all-or-nothing
// semantics hand the manager a storage.Staging.
type Manager struct {
	kv storage.KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func prefixed(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

func idKey(prefix []byte, id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return prefixed(prefix, buf[:])
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the store.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.kv.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.kv.Delete(kvKey(key))
}

// ParamStoreSet writes a raw parameter value.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	if name == "" {
		return fmt.Errorf("params: name must not be empty")
	}
	return m.KVPut(prefixed(paramPrefix, []byte(name)), value)
}

// ParamStoreGet reads a raw parameter value.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("params: name must not be empty")
	}
	var value []byte
	ok, err := m.KVGet(prefixed(paramPrefix, []byte(name)), &value)
	if err != nil || !ok {
		return nil, ok, err
	}
	return value, true, nil
}

// counter returns the next value a counter would hand out. Counters start
// at 1 so the zero id never names a record.
func (m *Manager) counter(name string) (uint64, error) {
	var next uint64
	ok, err := m.KVGet(prefixed(counterPrefix, []byte(name)), &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		return 1, nil
	}
	return next, nil
}

func (m *Manager) allocate(name string) (uint64, error) {
	id, err := m.counter(name)
	if err != nil {
		return 0, err
	}
	if err := m.KVPut(prefixed(counterPrefix, []byte(name)), id+1); err != nil {
		return 0, err
	}
	return id, nil
}

// AllocateListingID reserves the next listing id.
func (m *Manager) AllocateListingID() (uint64, error) { return m.allocate(counterListing) }

// AllocateSaleID reserves the next sale id.
func (m *Manager) AllocateSaleID() (uint64, error) { return m.allocate(counterSale) }

// NextListingID reports the id the next listing will receive without reserving it.
func (m *Manager) NextListingID() (uint64, error) { return m.counter(counterListing) }

// NextSaleID reports the id the next sale will receive without reserving it.
func (m *Manager) NextSaleID() (uint64, error) { return m.counter(counterSale) }
