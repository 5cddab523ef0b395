package kms

import (
	"crypto/rand"
	"testing"

	"github.com/custodix/evidence-engine/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKEK(t *testing.T) []byte {
	t.Helper()
	kek := make([]byte, 32)
	_, err := rand.Read(kek)
	require.NoError(t, err, "failed to generate test KEK")
	return kek
}

func TestShamirKeyManager_New(t *testing.T) {
	kek := testKEK(t)

	manager, shares, err := NewShamirKeyManager(kek, 3, 5)
	require.NoError(t, err)
	assert.NotNil(t, manager)
	assert.Len(t, shares, 5)
	assert.True(t, manager.IsUnlocked(), "manager starts unlocked when created with the KEK")

	// Invalid parameters.
	_, _, err = NewShamirKeyManager(kek, 6, 5)
	assert.Error(t, err, "threshold above total must fail")

	_, _, err = NewShamirKeyManager(kek, 1, 5)
	assert.Error(t, err, "threshold below 2 must fail")

	_, _, err = NewShamirKeyManager(make([]byte, 16), 3, 5)
	assert.Error(t, err, "short KEK must fail")
}

func TestShamirKeyManager_RecoveryUnlocks(t *testing.T) {
	kek := testKEK(t)
	original, shares, err := NewShamirKeyManager(kek, 3, 5)
	require.NoError(t, err)

	_, wrapped, err := original.GenerateDataKey()
	require.NoError(t, err)

	recovery, err := NewShamirKeyManagerRecovery(3)
	require.NoError(t, err)
	assert.False(t, recovery.IsUnlocked())
	assert.Equal(t, "shamir:locked", recovery.KeyID())

	// Locked operations fail distinguishably.
	_, _, err = recovery.GenerateDataKey()
	assert.ErrorIs(t, err, interfaces.ErrKeyGeneration)
	_, err = recovery.DecryptDataKey(wrapped)
	assert.ErrorIs(t, err, interfaces.ErrKeyUnwrap)

	// Submit a threshold of shares (any 3 of 5).
	require.NoError(t, recovery.SubmitShare(shares[4]))
	require.NoError(t, recovery.SubmitShare(shares[1]))
	assert.False(t, recovery.IsUnlocked(), "below threshold stays locked")
	require.NoError(t, recovery.SubmitShare(shares[2]))
	assert.True(t, recovery.IsUnlocked())
	assert.Equal(t, original.KeyID(), recovery.KeyID())

	// Reconstructed KEK unwraps keys wrapped before recovery.
	unwrapped, err := recovery.DecryptDataKey(wrapped)
	require.NoError(t, err)
	assert.Len(t, unwrapped, 32)
}

func TestShamirKeyManager_SubmitShareValidation(t *testing.T) {
	recovery, err := NewShamirKeyManagerRecovery(2)
	require.NoError(t, err)

	assert.Error(t, recovery.SubmitShare(nil), "empty share must be rejected")

	kek := testKEK(t)
	unlocked, _, err := NewShamirKeyManager(kek, 2, 3)
	require.NoError(t, err)
	assert.Error(t, unlocked.SubmitShare([]byte("share")), "unlocked manager rejects shares")

	_, err = NewShamirKeyManagerRecovery(1)
	assert.Error(t, err)
}
