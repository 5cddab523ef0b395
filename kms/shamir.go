package kms

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/custodix/evidence-engine/interfaces"
	"github.com/hashicorp/vault/shamir"
)

// ErrLocked is returned by key operations while the Shamir key manager has
// not yet collected enough custodian shares to reconstruct its KEK.
var ErrLocked = errors.New("key manager locked: insufficient shares submitted")

// ShamirKeyManager protects its key-encryption key with Shamir's Secret
// Sharing. The KEK is split into shares distributed to evidence custodians;
// a threshold number of shares must be submitted to reconstruct it before
// any data key can be generated or unwrapped.
//
// The KEK is never stored in persistent storage. After the initial split
// the original key should be securely erased; the reconstructed key exists
// only in memory.
type ShamirKeyManager struct {
	mu             sync.RWMutex
	kek            []byte
	unlocked       bool
	threshold      int
	receivedShares [][]byte
	keyID          string
}

// NewShamirKeyManager splits the provided KEK into total shares requiring
// threshold of them to reconstruct. The returned manager starts unlocked;
// the shares must be distributed to custodians and the input key erased.
func NewShamirKeyManager(kek []byte, threshold, total int) (*ShamirKeyManager, [][]byte, error) {
	if len(kek) < dataKeySize {
		return nil, nil, errors.New("key-encryption key must be at least 32 bytes")
	}
	if threshold < 2 {
		return nil, nil, errors.New("threshold must be at least 2")
	}
	if total < threshold {
		return nil, nil, errors.New("total shares must be at least equal to threshold")
	}

	shares, err := shamir.Split(kek, total, threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to split key-encryption key: %w", err)
	}

	held := make([]byte, len(kek))
	copy(held, kek)

	return &ShamirKeyManager{
		kek:       held,
		unlocked:  true,
		threshold: threshold,
		keyID:     shamirKeyID(held),
	}, shares, nil
}

// NewShamirKeyManagerRecovery creates a locked manager that waits for
// custodian shares. Key operations fail until threshold shares have been
// submitted and the KEK reconstructed.
func NewShamirKeyManagerRecovery(threshold int) (*ShamirKeyManager, error) {
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	return &ShamirKeyManager{threshold: threshold}, nil
}

// SubmitShare adds one custodian share. When the threshold is reached the
// KEK is reconstructed and the manager transitions to the unlocked state.
// An invalid share set surfaces when combination fails.
func (m *ShamirKeyManager) SubmitShare(share []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unlocked {
		return errors.New("key manager is already unlocked")
	}
	if len(share) == 0 {
		return errors.New("empty share")
	}

	held := make([]byte, len(share))
	copy(held, share)
	m.receivedShares = append(m.receivedShares, held)

	if len(m.receivedShares) < m.threshold {
		return nil
	}

	kek, err := shamir.Combine(m.receivedShares)
	if err != nil {
		// Drop the collected shares so a retry starts clean.
		m.receivedShares = nil
		return fmt.Errorf("share combination failed: %w", err)
	}

	m.kek = kek
	m.unlocked = true
	m.keyID = shamirKeyID(kek)
	m.receivedShares = nil
	return nil
}

// IsUnlocked reports whether the KEK has been reconstructed.
func (m *ShamirKeyManager) IsUnlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocked
}

// GenerateDataKey mints and wraps a data key. Fails with ErrLocked until
// enough shares have been submitted.
func (m *ShamirKeyManager) GenerateDataKey() ([]byte, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.unlocked {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrKeyGeneration, ErrLocked)
	}

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

// DecryptDataKey unwraps a data key. Fails with ErrLocked until enough
// shares have been submitted.
func (m *ShamirKeyManager) DecryptDataKey(wrapped []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.unlocked {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrKeyUnwrap, ErrLocked)
	}

	return unwrapKey(m.kek, wrapped)
}

// KeyID identifies the reconstructed KEK, or reports the locked state.
func (m *ShamirKeyManager) KeyID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.unlocked {
		return "shamir:locked"
	}
	return m.keyID
}

func shamirKeyID(kek []byte) string {
	fingerprint := sha256.Sum256(kek)
	return "shamir:" + hex.EncodeToString(fingerprint[:8])
}
