package envelope

import (
	"testing"

	"github.com/custodix/evidence-engine/interfaces"
	"github.com/custodix/evidence-engine/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyManager(t *testing.T) interfaces.KeyManager {
	t.Helper()
	manager, err := kms.NewLocalKeyManager("test-master-secret", nil)
	require.NoError(t, err)
	return manager
}

func TestEnvelope_RoundTrip(t *testing.T) {
	keyManager := testKeyManager(t)
	packID := interfaces.NewPackID()

	encryptor := NewEncryptor(keyManager)
	metadata, err := encryptor.Initialize()
	require.NoError(t, err)

	assert.Equal(t, "AES-256-GCM", metadata.Algorithm)
	assert.Equal(t, keyManager.KeyID(), metadata.KeyID)
	assert.Equal(t, "local", metadata.KeyProviderID)
	assert.Equal(t, 12, metadata.NonceSize)
	assert.Equal(t, 16, metadata.TagSize)
	assert.NotEmpty(t, metadata.WrappedKey)

	plaintext := []byte("memory dump contents")
	aad := FileAAD(packID, "artifacts/memory.dmp")

	blob, err := encryptor.EncryptFile(plaintext, aad)
	require.NoError(t, err)
	assert.Len(t, blob, NonceSize+len(plaintext)+TagSize)

	decryptor := NewDecryptor(keyManager)
	require.NoError(t, decryptor.Initialize(metadata))

	recovered, err := decryptor.DecryptFile(blob, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestEnvelope_FreshNoncePerFile(t *testing.T) {
	encryptor := NewEncryptor(testKeyManager(t))
	_, err := encryptor.Initialize()
	require.NoError(t, err)

	aad := FileAAD(interfaces.NewPackID(), "report.txt")
	first, err := encryptor.EncryptFile([]byte("same plaintext"), aad)
	require.NoError(t, err)
	second, err := encryptor.EncryptFile([]byte("same plaintext"), aad)
	require.NoError(t, err)

	assert.NotEqual(t, first[:NonceSize], second[:NonceSize])
	assert.NotEqual(t, first, second)
}

func TestEnvelope_AADMismatchFailsAuthentication(t *testing.T) {
	keyManager := testKeyManager(t)
	packID := interfaces.NewPackID()

	encryptor := NewEncryptor(keyManager)
	metadata, err := encryptor.Initialize()
	require.NoError(t, err)

	blob, err := encryptor.EncryptFile([]byte("evidence"), FileAAD(packID, "a.txt"))
	require.NoError(t, err)

	decryptor := NewDecryptor(keyManager)
	require.NoError(t, decryptor.Initialize(metadata))

	// Renamed within the pack.
	_, err = decryptor.DecryptFile(blob, FileAAD(packID, "b.txt"))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// Moved to a different pack.
	_, err = decryptor.DecryptFile(blob, FileAAD(interfaces.NewPackID(), "a.txt"))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestEnvelope_CorruptedCiphertext(t *testing.T) {
	keyManager := testKeyManager(t)
	packID := interfaces.NewPackID()
	aad := FileAAD(packID, "a.txt")

	encryptor := NewEncryptor(keyManager)
	metadata, err := encryptor.Initialize()
	require.NoError(t, err)

	blob, err := encryptor.EncryptFile([]byte("evidence"), aad)
	require.NoError(t, err)

	decryptor := NewDecryptor(keyManager)
	require.NoError(t, decryptor.Initialize(metadata))

	corrupted := append([]byte(nil), blob...)
	corrupted[NonceSize] ^= 0x01
	_, err = decryptor.DecryptFile(corrupted, aad)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = decryptor.DecryptFile(blob[:NonceSize+3], aad)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestEnvelope_WrongKeyManagerCannotUnwrap(t *testing.T) {
	encryptor := NewEncryptor(testKeyManager(t))
	metadata, err := encryptor.Initialize()
	require.NoError(t, err)

	other, err := kms.NewLocalKeyManager("a-different-secret", nil)
	require.NoError(t, err)

	decryptor := NewDecryptor(other)
	err = decryptor.Initialize(metadata)
	assert.ErrorIs(t, err, interfaces.ErrKeyUnwrap)
}

func TestEnvelope_RequiresInitialization(t *testing.T) {
	encryptor := NewEncryptor(testKeyManager(t))
	_, err := encryptor.EncryptFile([]byte("data"), nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	decryptor := NewDecryptor(testKeyManager(t))
	_, err = decryptor.DecryptFile(make([]byte, 64), nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEnvelope_RejectsUnknownAlgorithm(t *testing.T) {
	decryptor := NewDecryptor(testKeyManager(t))
	err := decryptor.Initialize(EncryptionMetadata{Algorithm: "AES-128-CBC"})
	assert.Error(t, err)
}
