package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

// KeystoreStrength selects the scrypt cost used when encrypting a key.
type KeystoreStrength int

const (
	// StandardKeystore uses go-ethereum's standard scrypt parameters.
	StandardKeystore KeystoreStrength = iota
	// LightKeystore trades brute-force resistance for speed. Use it for
	// throwaway keys only.
	LightKeystore
)

func (s KeystoreStrength) params() (int, int) {
	if s == LightKeystore {
		return keystore.LightScryptN, keystore.LightScryptP
	}
	return keystore.StandardScryptN, keystore.StandardScryptP
}

// SaveKeystore encrypts key into a v3 keystore file at path. The file is
// written next to its destination and renamed into place so a crash never
// leaves a truncated keystore behind.
func SaveKeystore(path string, key *PrivateKey, passphrase string, strength KeystoreStrength) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if passphrase == "" {
		return errors.New("crypto: empty keystore passphrase")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	scryptN, scryptP := strength.params()
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    key.PubKey().Address().ethAddress(),
		PrivateKey: key.PrivateKey,
	}, passphrase, scryptN, scryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
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
	if _, err := tmp.Write(encrypted); err != nil {
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

// LoadKeystore decrypts the v3 keystore at path and checks that the stored
// address matches the decrypted key.
func LoadKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", path, err)
	}
	key := &PrivateKey{PrivateKey: decrypted.PrivateKey}
	if key.PubKey().Address().ethAddress() != decrypted.Address {
		return nil, fmt.Errorf("crypto: keystore %s address does not match its key", path)
	}
	return key, nil
}
