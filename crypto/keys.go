package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of a bech32 address.
type AddressPrefix string

const (
	NHBPrefix AddressPrefix = "nhb"
)

// AddressLength is the raw byte length of every account identity.
const AddressLength = 20

// Address represents a 20-byte account identity with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress builds an address, rejecting payloads that are not 20 bytes long.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long (got %d)", AddressLength, len(b))
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustNewAddress is NewAddress for callers holding a fixed-size identity.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Array returns the address as the fixed-size identity used by state records.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParseAddress decodes an nhb-prefixed bech32 string into a raw identity.
func ParseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	if addr.Prefix() != NHBPrefix {
		return [20]byte{}, fmt.Errorf("address must use %s prefix", NHBPrefix)
	}
	return addr.Array(), nil
}

// FormatAddress renders a raw identity using the nhb prefix.
func FormatAddress(addr [20]byte) string {
	return MustNewAddress(NHBPrefix, addr[:]).String()
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustNewAddress(NHBPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
