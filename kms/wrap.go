package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/custodix/evidence-engine/interfaces"
)

// dataKeySize is the size of per-pack data encryption keys (AES-256).
const dataKeySize = 32

// wrapAAD binds wrapped blobs to their purpose so a wrapped data key cannot
// be confused with other ciphertext under the same KEK.
var wrapAAD = []byte("evidence-pack-dek")

// newDataKey generates a fresh random 256-bit data encryption key.
func newDataKey() ([]byte, error) {
	key := make([]byte, dataKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}
	return key, nil
}

// wrapKey encrypts a data key under the KEK with AES-256-GCM.
// Output format: nonce (12 bytes) followed by ciphertext+tag.
func wrapKey(kek, dataKey []byte) ([]byte, error) {
	aead, err := newAEAD(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, err)
	}

	return append(nonce, aead.Seal(nil, nonce, dataKey, wrapAAD)...), nil
}

// unwrapKey decrypts a wrapped data key. A wrong KEK or corrupted wrap fails
// the GCM tag check and surfaces as ErrKeyUnwrap; garbage key material is
// never returned.
func unwrapKey(kek, wrapped []byte) ([]byte, error) {
	aead, err := newAEAD(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, err)
	}

	if len(wrapped) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: wrapped key too short", interfaces.ErrKeyUnwrap)
	}

	nonce := wrapped[:aead.NonceSize()]
	dataKey, err := aead.Open(nil, nonce, wrapped[aead.NonceSize():], wrapAAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, err)
	}

	return dataKey, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
