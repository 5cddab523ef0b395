package custody

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/custodix/evidence-engine/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCustodian = Custodian{
	ID:           "system",
	Name:         "automation",
	Role:         "system",
	Organization: "custodix",
}

func TestChain_AppendLinksEvents(t *testing.T) {
	packID := interfaces.NewPackID()
	chain := NewChain(packID, nil, nil)

	actions := []CustodyAction{ActionCreated, ActionSealed, ActionAccessed, ActionVerified, ActionExported}
	for _, action := range actions {
		_, err := chain.RecordEvent(action, testCustodian, EventDetails{})
		require.NoError(t, err)
	}

	events := chain.Events()
	require.Len(t, events, len(actions))

	for i, event := range events {
		assert.Equal(t, i, event.SequenceNumber)
		assert.Equal(t, actions[i], event.Action)
		assert.Equal(t, string(packID), event.Evidence.PackID)
		assert.NotEmpty(t, event.EventID)
		assert.NotEmpty(t, event.Chain.EventHash)

		if i == 0 {
			assert.Empty(t, event.Chain.PreviousEventHash, "genesis event links to nothing")
		} else {
			assert.Equal(t, events[i-1].Chain.EventHash, event.Chain.PreviousEventHash)
		}
	}

	result := NewChainVerifier(nil).Verify(events)
	assert.True(t, result.Valid)
	assert.True(t, result.ChainIntact)
	assert.Equal(t, len(actions), result.VerifiedEvents)
	assert.Empty(t, result.BrokenLinks)
	assert.Empty(t, result.TamperedEvents)
}

func TestChain_ConvenienceRecorders(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), nil, nil)

	created, err := chain.RecordCreation(testCustodian, "roothash")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, created.Action)
	assert.Equal(t, "roothash", created.Evidence.ContentHash)

	sealed, err := chain.RecordSeal(testCustodian, "roothash")
	require.NoError(t, err)
	assert.Equal(t, ActionSealed, sealed.Action)

	auditor := Custodian{ID: "aud-1", Name: "auditor"}
	transferred, err := chain.RecordTransfer(testCustodian, auditor, "regulatory audit")
	require.NoError(t, err)
	assert.Contains(t, transferred.Description, "auditor")

	accessed, err := chain.RecordAccess(auditor, "case review", Context{IPAddress: "10.0.0.7", AccessMethod: "api"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", accessed.Context.IPAddress)
	assert.Equal(t, "api", accessed.Context.AccessMethod)

	held, err := chain.RecordLegalHold(auditor, "hold-9", "CASE-2031", "litigation")
	require.NoError(t, err)
	assert.Equal(t, ActionLegalHold, held.Action)

	deleted, err := chain.RecordDeletion(testCustodian, "retention expired")
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, deleted.Action)

	result := NewChainVerifier(nil).Verify(chain.Events())
	assert.True(t, result.Valid)
}

func TestChainVerifier_DetectsFieldMutation(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), nil, nil)
	for i := 0; i < 4; i++ {
		_, err := chain.RecordEvent(ActionAccessed, testCustodian, EventDetails{})
		require.NoError(t, err)
	}

	events := chain.Events()
	events[2].Action = ActionDeleted

	result := NewChainVerifier(nil).Verify(events)
	assert.False(t, result.Valid)
	assert.Contains(t, result.TamperedEvents, 2)
	assert.Empty(t, result.BrokenLinks, "links still match, only the event content changed")
}

func TestChainVerifier_DetectsBrokenLink(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), nil, nil)
	for i := 0; i < 3; i++ {
		_, err := chain.RecordEvent(ActionAccessed, testCustodian, EventDetails{})
		require.NoError(t, err)
	}

	events := chain.Events()
	events[1].Chain.PreviousEventHash = "0000"

	result := NewChainVerifier(nil).Verify(events)
	assert.False(t, result.Valid)
	assert.False(t, result.ChainIntact)
	assert.Contains(t, result.BrokenLinks, 1)
}

func TestChainVerifier_EmptyChain(t *testing.T) {
	result := NewChainVerifier(nil).Verify(nil)
	assert.True(t, result.Valid)
	assert.True(t, result.ChainIntact)
	assert.NotEmpty(t, result.Warnings)
}

func TestChainVerifier_TimestampDisorderIsWarning(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), nil, nil)
	_, err := chain.RecordEvent(ActionCreated, testCustodian, EventDetails{})
	require.NoError(t, err)
	_, err = chain.RecordEvent(ActionSealed, testCustodian, EventDetails{})
	require.NoError(t, err)

	events := chain.Events()

	// Rewind the second event's clock and rebuild its hash chain so only the
	// ordering is off, not the integrity.
	events[1].Timestamp = time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	rehash, err := events[1].ComputeHash()
	require.NoError(t, err)
	events[1].Chain.EventHash = rehash

	result := NewChainVerifier(nil).Verify(events)
	assert.True(t, result.Valid, "clock skew is not tampering")
	assert.NotEmpty(t, result.Warnings)
}

func TestChain_SignedEvents(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	chain := NewChain(interfaces.NewPackID(), signer, nil)
	for i := 0; i < 3; i++ {
		_, err := chain.RecordEvent(ActionAccessed, testCustodian, EventDetails{})
		require.NoError(t, err)
	}

	events := chain.Events()
	for _, event := range events {
		require.NotNil(t, event.Signature)
		assert.Equal(t, SignatureAlgorithmECDSAP256, event.Signature.Algorithm)
	}

	result := NewChainVerifier(signer.Verifier()).Verify(events)
	assert.True(t, result.Valid)
	assert.True(t, result.AllSignaturesValid)
	assert.Empty(t, result.InvalidSignatures)

	// Without a verifier, present signatures are unverifiable warnings, not
	// failures.
	unverified := NewChainVerifier(nil).Verify(events)
	assert.True(t, unverified.Valid)
	assert.True(t, unverified.AllSignaturesValid)
	assert.NotEmpty(t, unverified.Warnings)

	// A wrong key rejects every signature but leaves hash validity alone.
	other, err := GenerateSigner()
	require.NoError(t, err)
	mismatched := NewChainVerifier(other.Verifier()).Verify(events)
	assert.True(t, mismatched.Valid)
	assert.False(t, mismatched.AllSignaturesValid)
	assert.Len(t, mismatched.InvalidSignatures, len(events))
}

type failingSigner struct{}

func (failingSigner) Sign([]byte) ([]byte, error) { return nil, errors.New("hsm unreachable") }
func (failingSigner) Algorithm() string           { return "ECDSA-P256-SHA256" }

func TestChain_SignerFailureDegradesToUnsigned(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), failingSigner{}, nil)

	event, err := chain.RecordEvent(ActionCreated, testCustodian, EventDetails{})
	require.NoError(t, err, "signing failure must not block the custody record")
	assert.Nil(t, event.Signature)

	result := NewChainVerifier(nil).Verify(chain.Events())
	assert.True(t, result.Valid)
}

func TestChain_JSONRoundTrip(t *testing.T) {
	packID := interfaces.NewPackID()
	chain := NewChain(packID, nil, nil)
	_, err := chain.RecordCreation(testCustodian, "roothash")
	require.NoError(t, err)
	_, err = chain.RecordSeal(testCustodian, "roothash")
	require.NoError(t, err)

	data, err := json.Marshal(chain)
	require.NoError(t, err)

	loaded, err := LoadChain(packID, data, nil)
	require.NoError(t, err)
	require.Equal(t, chain.Len(), loaded.Len())

	result := NewChainVerifier(nil).Verify(loaded.Events())
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.TotalEvents)
}

func TestChain_ConcurrentAppends(t *testing.T) {
	chain := NewChain(interfaces.NewPackID(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := chain.RecordEvent(ActionAccessed, testCustodian, EventDetails{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events := chain.Events()
	require.Len(t, events, 32)

	seen := make(map[int]bool)
	for _, event := range events {
		assert.False(t, seen[event.SequenceNumber], "duplicate sequence number")
		seen[event.SequenceNumber] = true
	}

	result := NewChainVerifier(nil).Verify(events)
	assert.True(t, result.Valid, "serialized appends keep the chain intact")
}
