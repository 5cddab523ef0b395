package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/custodix/evidence-engine/interfaces"
)

const (
	// NonceSize is the GCM nonce length: 96 bits, generated fresh per file.
	NonceSize = 12

	// TagSize is the GCM authentication tag length: 128 bits.
	TagSize = 16

	// Algorithm is the only cipher suite the engine produces.
	Algorithm = "AES-256-GCM"
)

// ErrNotInitialized is returned when encrypt/decrypt is attempted before a
// data key has been established.
var ErrNotInitialized = errors.New("envelope not initialized")

// EncryptionMetadata is the persisted encryption record of a pack (the
// "encryption" section of manifest.json). The wrapped data key is the only
// key material ever written to disk.
type EncryptionMetadata struct {
	Algorithm     string `json:"algorithm"`
	KeyProviderID string `json:"keyProviderId"`
	KeyID         string `json:"keyId"`
	WrappedKey    string `json:"wrappedKey"`
	NonceSize     int    `json:"nonceSize"`
	TagSize       int    `json:"tagSize"`
	CreatedAt     string `json:"createdAt"`
}

// FileAAD builds the associated data binding a ciphertext to its pack and
// path. Moving an encrypted file between packs, or renaming it within one,
// fails authentication on decrypt.
func FileAAD(packID interfaces.PackID, path string) []byte {
	return []byte(string(packID) + "\x00" + path)
}

// Encryptor envelope-encrypts pack files with a per-pack data key sealed by
// the key management boundary. The plaintext data key lives only in memory
// for the encryptor's lifetime.
type Encryptor struct {
	keyManager interfaces.KeyManager
	aead       cipher.AEAD
	metadata   EncryptionMetadata
}

// NewEncryptor creates an encryptor bound to a key manager.
func NewEncryptor(keyManager interfaces.KeyManager) *Encryptor {
	return &Encryptor{keyManager: keyManager}
}

// Initialize requests one fresh data key for a new pack and returns the
// metadata to persist in the pack manifest. Key generation failure is fatal
// for pack creation.
func (e *Encryptor) Initialize() (EncryptionMetadata, error) {
	dataKey, wrapped, err := e.keyManager.GenerateDataKey()
	if err != nil {
		return EncryptionMetadata{}, err
	}

	aead, err := newAEAD(dataKey)
	if err != nil {
		return EncryptionMetadata{}, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}

	keyID := e.keyManager.KeyID()
	e.aead = aead
	e.metadata = EncryptionMetadata{
		Algorithm:     Algorithm,
		KeyProviderID: providerFromKeyID(keyID),
		KeyID:         keyID,
		WrappedKey:    base64.StdEncoding.EncodeToString(wrapped),
		NonceSize:     NonceSize,
		TagSize:       TagSize,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	return e.metadata, nil
}

// EncryptFile encrypts one file under the pack's data key.
//
// A fresh random nonce is drawn from the CSPRNG for every call; nonces are
// never derived from counters, so concurrent encryptors cannot collide.
// Output format: nonce (12 bytes) followed by ciphertext+tag.
func (e *Encryptor) EncryptFile(plaintext, associatedData []byte) ([]byte, error) {
	if e.aead == nil {
		return nil, ErrNotInitialized
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return e.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Metadata returns the metadata produced by Initialize.
func (e *Encryptor) Metadata() EncryptionMetadata {
	return e.metadata
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("data key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func providerFromKeyID(keyID string) string {
	if i := strings.IndexByte(keyID, ':'); i > 0 {
		return keyID[:i]
	}
	return "unknown"
}
