package kms

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations is the PBKDF2-HMAC-SHA256 work factor for deriving the
// key-encryption key from the master secret.
const pbkdf2Iterations = 100_000

// LocalKeyManager derives its key-encryption key from a master secret using
// PBKDF2. Suitable for development, testing, and single-host deployments;
// production setups should prefer the AWS KMS or Vault providers.
type LocalKeyManager struct {
	kek   []byte
	salt  []byte
	keyID string
}

// NewLocalKeyManager creates a key manager from a master secret. If salt is
// nil a random 16-byte salt is generated; the salt must be persisted by the
// caller to unwrap data keys in a later process.
func NewLocalKeyManager(masterSecret string, salt []byte) (*LocalKeyManager, error) {
	if masterSecret == "" {
		return nil, errors.New("master secret must not be empty")
	}

	if salt == nil {
		salt = make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	fingerprint := sha256.Sum256(salt)

	return &LocalKeyManager{
		kek:   pbkdf2.Key([]byte(masterSecret), salt, pbkdf2Iterations, dataKeySize, sha256.New),
		salt:  salt,
		keyID: "local:" + hex.EncodeToString(fingerprint[:8]),
	}, nil
}

// GenerateDataKey mints a fresh data key and wraps it under the derived KEK.
func (m *LocalKeyManager) GenerateDataKey() ([]byte, []byte, error) {
	dataKey, err := newDataKey()
	if err != nil {
		return nil, nil, err
	}

	wrapped, err := wrapKey(m.kek, dataKey)
	if err != nil {
		return nil, nil, err
	}

	return dataKey, wrapped, nil
}

// DecryptDataKey unwraps a data key previously wrapped by this manager.
func (m *LocalKeyManager) DecryptDataKey(wrapped []byte) ([]byte, error) {
	return unwrapKey(m.kek, wrapped)
}

// KeyID identifies the derived KEK by its salt fingerprint.
func (m *LocalKeyManager) KeyID() string {
	return m.keyID
}

// Salt returns the KDF salt for persistence alongside pack metadata.
func (m *LocalKeyManager) Salt() []byte {
	return m.salt
}
