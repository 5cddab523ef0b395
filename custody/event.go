package custody

import (
	"strconv"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/interfaces"
)

// CustodyAction identifies a lifecycle action recorded in the chain of
// custody. The engine enforces no ordering between actions; lifecycle
// legality is a policy concern layered above it.
type CustodyAction string

const (
	ActionCreated           CustodyAction = "created"
	ActionSealed            CustodyAction = "sealed"
	ActionTransferred       CustodyAction = "transferred"
	ActionAccessed          CustodyAction = "accessed"
	ActionVerified          CustodyAction = "verified"
	ActionExported          CustodyAction = "exported"
	ActionDecrypted         CustodyAction = "decrypted"
	ActionLegalHold         CustodyAction = "legal_hold"
	ActionLegalRelease      CustodyAction = "legal_release"
	ActionRetentionSet      CustodyAction = "retention_set"
	ActionArchived          CustodyAction = "archived"
	ActionRestored          CustodyAction = "restored"
	ActionDeletionScheduled CustodyAction = "deletion_scheduled"
	ActionDeleted           CustodyAction = "deleted"
)

// Custodian identifies the actor responsible for a custody action.
type Custodian struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// ChainLink carries the hash linkage of an event: previousEventHash is
// empty for the genesis event and otherwise must equal the prior event's
// eventHash.
type ChainLink struct {
	PreviousEventHash string `json:"previousEventHash"`
	EventHash         string `json:"eventHash"`
}

// EvidenceRef ties an event to the pack and content state it describes.
type EvidenceRef struct {
	PackID      string `json:"packId"`
	ContentHash string `json:"contentHash"`
}

// Context records how the custodian reached the evidence.
type Context struct {
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	AccessMethod string `json:"accessMethod,omitempty"`
}

// EventSignature is the optional custodian signature over the event's
// canonical form, base64-encoded.
type EventSignature struct {
	CustodianSignature string `json:"custodianSignature"`
	Algorithm          string `json:"algorithm"`
}

// CustodyEvent is one immutable entry in a pack's chain of custody. Its
// JSON encoding matches the chainOfCustody section of manifest.json.
type CustodyEvent struct {
	EventID        string          `json:"eventId"`
	SequenceNumber int             `json:"sequenceNumber"`
	Timestamp      string          `json:"timestamp"`
	Chain          ChainLink       `json:"chain"`
	Action         CustodyAction   `json:"action"`
	Description    string          `json:"description,omitempty"`
	Custodian      Custodian       `json:"custodian"`
	Evidence       EvidenceRef     `json:"evidence"`
	Context        Context         `json:"context"`
	Signature      *EventSignature `json:"signature,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// eventPayload is the canonical, hash-stable form of an event. It covers
// every field except eventHash and signature, which are derived from it.
// Fields are declared in sorted key order so the serialization matches the
// canonical-JSON convention used everywhere hashes are computed.
type eventPayload struct {
	AccessMethod      string         `json:"accessMethod"`
	Action            CustodyAction  `json:"action"`
	ContentHash       string         `json:"contentHash"`
	Custodian         Custodian      `json:"custodian"`
	Description       string         `json:"description"`
	EventID           string         `json:"eventId"`
	EvidencePackID    string         `json:"evidencePackId"`
	IPAddress         string         `json:"ipAddress"`
	Metadata          map[string]any `json:"metadata"`
	PreviousEventHash string         `json:"previousEventHash"`
	SequenceNumber    int            `json:"sequenceNumber"`
	Timestamp         string         `json:"timestamp"`
	UserAgent         string         `json:"userAgent"`
}

// CanonicalPayload serializes the event's hash-covered fields. The same
// bytes are hashed into eventHash and, when a signer is configured, signed
// by the custodian.
func (e *CustodyEvent) CanonicalPayload() ([]byte, error) {
	return cryptoutils.CanonicalJSON(eventPayload{
		AccessMethod:      e.Context.AccessMethod,
		Action:            e.Action,
		ContentHash:       e.Evidence.ContentHash,
		Custodian:         e.Custodian,
		Description:       e.Description,
		EventID:           e.EventID,
		EvidencePackID:    e.Evidence.PackID,
		IPAddress:         e.Context.IPAddress,
		Metadata:          e.Metadata,
		PreviousEventHash: e.Chain.PreviousEventHash,
		SequenceNumber:    e.SequenceNumber,
		Timestamp:         e.Timestamp,
		UserAgent:         e.Context.UserAgent,
	})
}

// ComputeHash recomputes the event hash from the canonical payload.
func (e *CustodyEvent) ComputeHash() (string, error) {
	payload, err := e.CanonicalPayload()
	if err != nil {
		return "", err
	}
	return cryptoutils.SHA256.Sum(payload), nil
}

// eventID derives a short stable identifier for a new event.
func eventID(timestamp string, action CustodyAction, packID interfaces.PackID, sequence int) string {
	digest := cryptoutils.SHA256.Sum(
		[]byte(timestamp + string(action) + string(packID) + strconv.Itoa(sequence)))
	return digest[:16]
}
