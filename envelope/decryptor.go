package envelope

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/custodix/evidence-engine/interfaces"
)

// ErrAuthenticationFailed is returned when the GCM tag check fails during
// decryption: wrong key, corrupted ciphertext, or associated-data mismatch.
// It is always fatal for the affected file; no best-effort plaintext is ever
// produced. This is the primary tamper signal for encrypted content,
// independent of the Merkle check over plaintext hashes.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Decryptor mirrors the Encryptor for verification and audit flows: it
// unwraps a pack's data key through the key management boundary and
// decrypts individual files.
type Decryptor struct {
	keyManager interfaces.KeyManager
	aead       cipher.AEAD
}

// NewDecryptor creates a decryptor bound to a key manager holding access to
// the key-encryption key referenced by the pack's metadata.
func NewDecryptor(keyManager interfaces.KeyManager) *Decryptor {
	return &Decryptor{keyManager: keyManager}
}

// Initialize unwraps the pack's data key from persisted metadata. Unwrap
// failures wrap interfaces.ErrKeyUnwrap and may be retried by read-only
// verification flows.
func (d *Decryptor) Initialize(metadata EncryptionMetadata) error {
	if metadata.Algorithm != Algorithm {
		return fmt.Errorf("unsupported encryption algorithm: %q", metadata.Algorithm)
	}

	wrapped, err := base64.StdEncoding.DecodeString(metadata.WrappedKey)
	if err != nil {
		return fmt.Errorf("%w: invalid wrapped key encoding: %v", interfaces.ErrKeyUnwrap, err)
	}

	dataKey, err := d.keyManager.DecryptDataKey(wrapped)
	if err != nil {
		return err
	}

	aead, err := newAEAD(dataKey)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, err)
	}

	d.aead = aead
	return nil
}

// DecryptFile decrypts one file. The associated data must match what was
// supplied at encryption time or the call fails with
// ErrAuthenticationFailed.
func (d *Decryptor) DecryptFile(blob, associatedData []byte) ([]byte, error) {
	if d.aead == nil {
		return nil, ErrNotInitialized
	}

	if len(blob) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: blob shorter than nonce and tag", ErrAuthenticationFailed)
	}

	nonce := blob[:NonceSize]
	plaintext, err := d.aead.Open(nil, nonce, blob[NonceSize:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return plaintext, nil
}
