package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; N=2^15 keeps derivation under ~100ms on typical hardware.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

const saltSize = 16

// DeriveKey derives a hex-encoded 32-byte cipher key from a passphrase and
// salt, for configs that supply a passphrase instead of a raw hex key.
func DeriveKey(passphrase string, salt []byte) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is empty")
	}
	if len(salt) != saltSize {
		return "", fmt.Errorf("salt must be %d bytes, got %d", saltSize, len(salt))
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// LoadOrCreateSalt reads the salt file at path, generating and persisting a
// random salt on first use so derived keys stay stable across runs.
func LoadOrCreateSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != saltSize {
			return nil, fmt.Errorf("salt file %s has %d bytes, want %d", path, len(data), saltSize)
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading salt file: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("writing salt file: %w", err)
	}
	return salt, nil
}
