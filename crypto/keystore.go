package crypto

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// scrypt cost parameters; tests lower them.
var (
	keystoreScryptN = keystore.StandardScryptN
	keystoreScryptP = keystore.StandardScryptP
)

// SaveToKeystore encrypts key into a v3 keystore file at path. The file is
// written next to its destination and renamed into place.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	encoded, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystoreScryptN, keystoreScryptP)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts a v3 keystore file.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
