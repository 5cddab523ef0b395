package custody

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/interfaces"
)

// EventDetails carries the optional fields of a custody event. The zero
// value is a valid, empty detail set.
type EventDetails struct {
	Description string
	ContentHash string
	Context     Context
	Metadata    map[string]any
}

// Chain is the append-only chain of custody for a single evidence pack.
//
// Appends are serialized with a mutex so sequenceNumber assignment and
// previousEventHash linkage stay correct under concurrent recorders.
// Chains of different packs are fully independent.
type Chain struct {
	mu     sync.Mutex
	packID interfaces.PackID
	signer Signer
	log    *slog.Logger
	events []CustodyEvent
}

// NewChain creates an empty chain for a pack. The signer is optional: a nil
// signer records unsigned events.
func NewChain(packID interfaces.PackID, signer Signer, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{packID: packID, signer: signer, log: log}
}

// LoadChain reconstructs a chain from its persisted JSON event array. The
// load itself does not validate linkage or hashes; run a ChainVerifier over
// Events() for that.
func LoadChain(packID interfaces.PackID, data []byte, log *slog.Logger) (*Chain, error) {
	var events []CustodyEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse custody events: %w", err)
	}
	return ResumeChain(packID, events, nil, log), nil
}

// ResumeChain continues an existing chain from already-decoded events, so
// later lifecycle events link onto the persisted history. The signer is
// optional and applies only to newly recorded events.
func ResumeChain(packID interfaces.PackID, events []CustodyEvent, signer Signer, log *slog.Logger) *Chain {
	chain := NewChain(packID, signer, log)
	chain.events = append(chain.events, events...)
	return chain
}

// RecordEvent appends one custody event: it links to the previous event's
// hash (empty for genesis), assigns the next sequence number, hashes the
// canonical payload, and signs it when a signer is configured.
//
// A signer failure degrades to an unsigned event rather than blocking the
// custody record; the miss is logged and visible in the persisted chain as
// an absent signature.
func (c *Chain) RecordEvent(action CustodyAction, custodian Custodian, details EventDetails) (CustodyEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previousHash := ""
	if len(c.events) > 0 {
		previousHash = c.events[len(c.events)-1].Chain.EventHash
	}

	description := details.Description
	if description == "" {
		description = fmt.Sprintf("%s by %s", action, custodian.Name)
	}

	context := details.Context
	if context.AccessMethod == "" {
		context.AccessMethod = "system"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	sequence := len(c.events)

	event := CustodyEvent{
		EventID:        eventID(timestamp, action, c.packID, sequence),
		SequenceNumber: sequence,
		Timestamp:      timestamp,
		Chain:          ChainLink{PreviousEventHash: previousHash},
		Action:         action,
		Description:    description,
		Custodian:      custodian,
		Evidence:       EvidenceRef{PackID: string(c.packID), ContentHash: details.ContentHash},
		Context:        context,
		Metadata:       details.Metadata,
	}

	payload, err := event.CanonicalPayload()
	if err != nil {
		return CustodyEvent{}, err
	}
	event.Chain.EventHash = cryptoutils.SHA256.Sum(payload)

	if c.signer != nil {
		signature, err := c.signer.Sign(payload)
		if err != nil {
			c.log.Warn("custody event signing failed, recording unsigned event",
				"packID", c.packID, "sequence", sequence, "err", err)
		} else {
			event.Signature = &EventSignature{
				CustodianSignature: base64.StdEncoding.EncodeToString(signature),
				Algorithm:          c.signer.Algorithm(),
			}
		}
	}

	c.events = append(c.events, event)
	return event, nil
}

// RecordCreation records the genesis event of a pack, referencing the
// Merkle root of its initial content.
func (c *Chain) RecordCreation(custodian Custodian, contentHash string) (CustodyEvent, error) {
	return c.RecordEvent(ActionCreated, custodian, EventDetails{
		Description: "Evidence pack created",
		ContentHash: contentHash,
	})
}

// RecordSeal records finalization of a pack.
func (c *Chain) RecordSeal(custodian Custodian, contentHash string) (CustodyEvent, error) {
	return c.RecordEvent(ActionSealed, custodian, EventDetails{
		Description: "Evidence pack sealed and finalized",
		ContentHash: contentHash,
	})
}

// RecordTransfer records a custody handover between two custodians.
func (c *Chain) RecordTransfer(from, to Custodian, reason string) (CustodyEvent, error) {
	return c.RecordEvent(ActionTransferred, from, EventDetails{
		Description: fmt.Sprintf("Custody transferred to %s: %s", to.Name, reason),
		Metadata: map[string]any{
			"transferredTo": custodianMetadata(to),
			"reason":        reason,
		},
	})
}

// RecordAccess records that a custodian viewed pack content.
func (c *Chain) RecordAccess(custodian Custodian, reason string, context Context) (CustodyEvent, error) {
	return c.RecordEvent(ActionAccessed, custodian, EventDetails{
		Description: fmt.Sprintf("Evidence accessed: %s", reason),
		Context:     context,
		Metadata:    map[string]any{"reason": reason},
	})
}

// RecordVerification records the outcome of an integrity check.
func (c *Chain) RecordVerification(custodian Custodian, passed bool, result map[string]any) (CustodyEvent, error) {
	outcome := "FAILED"
	if passed {
		outcome = "PASSED"
	}
	return c.RecordEvent(ActionVerified, custodian, EventDetails{
		Description: "Integrity verified: " + outcome,
		Metadata:    map[string]any{"verificationResult": result},
	})
}

// RecordExport records an export of pack content.
func (c *Chain) RecordExport(custodian Custodian, format, destination string) (CustodyEvent, error) {
	return c.RecordEvent(ActionExported, custodian, EventDetails{
		Description: fmt.Sprintf("Evidence exported as %s", format),
		Metadata: map[string]any{
			"format":      format,
			"destination": destination,
		},
	})
}

// RecordLegalHold records placement of a legal hold.
func (c *Chain) RecordLegalHold(custodian Custodian, holdID, caseNumber, reason string) (CustodyEvent, error) {
	return c.RecordEvent(ActionLegalHold, custodian, EventDetails{
		Description: fmt.Sprintf("Legal hold placed: %s", reason),
		Metadata: map[string]any{
			"holdId":     holdID,
			"caseNumber": caseNumber,
			"reason":     reason,
		},
	})
}

// RecordDeletion records the terminal deletion event of a pack.
func (c *Chain) RecordDeletion(custodian Custodian, reason string) (CustodyEvent, error) {
	return c.RecordEvent(ActionDeleted, custodian, EventDetails{
		Description: fmt.Sprintf("Evidence deleted: %s", reason),
		Metadata:    map[string]any{"reason": reason},
	})
}

// custodianMetadata flattens a custodian into plain JSON types. Metadata
// values must hash identically before and after a persistence round trip,
// and typed structs inside map[string]any do not: they come back as maps.
func custodianMetadata(c Custodian) map[string]any {
	data, err := json.Marshal(c)
	if err != nil {
		return map[string]any{"id": c.ID, "name": c.Name}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"id": c.ID, "name": c.Name}
	}
	return m
}

// PackID returns the pack this chain belongs to.
func (c *Chain) PackID() interfaces.PackID {
	return c.packID
}

// Events returns a copy of the recorded events in append order.
func (c *Chain) Events() []CustodyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]CustodyEvent, len(c.events))
	copy(events, c.events)
	return events
}

// Len returns the number of recorded events.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// MarshalJSON serializes the chain as the ordered event array persisted in
// the pack manifest.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Events())
}
