package interfaces

import "errors"

var (
	// ErrKeyGeneration is returned when the key manager cannot mint a new
	// data key. Pack creation must abort: a pack cannot exist without its key.
	ErrKeyGeneration = errors.New("data key generation failed")

	// ErrKeyUnwrap is returned when a wrapped data key cannot be decrypted.
	// This covers a wrong key-encryption key as well as a corrupted wrap;
	// the key manager never silently returns garbage key material.
	ErrKeyUnwrap = errors.New("data key unwrap failed")
)

// KeyManager is the key management boundary. Implementations hold or derive
// the long-lived key-encryption key; the rest of the engine only ever sees
// per-pack data keys and their wrapped form.
//
// Exactly one wrapped key exists per evidence pack. The plaintext data key
// must only live in memory for the duration of encrypt/decrypt operations.
type KeyManager interface {
	// GenerateDataKey mints a fresh 256-bit data encryption key and returns
	// both the plaintext key and its wrapped (encrypted) form. Failures wrap
	// ErrKeyGeneration.
	GenerateDataKey() (plaintext, wrapped []byte, err error)

	// DecryptDataKey unwraps a previously wrapped data key. Failures wrap
	// ErrKeyUnwrap and are distinguishable from authentication failures on
	// pack content.
	DecryptDataKey(wrapped []byte) ([]byte, error)

	// KeyID identifies the key-encryption key, prefixed with the provider
	// scheme (e.g. "local:", "aws-kms:", "vault:").
	KeyID() string
}
