package custody

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/custodix/evidence-engine/cryptoutils"
)

// ChainVerificationResult is the structured outcome of a chain check.
// Broken links and tampered events are reported as index lists rather than
// a single boolean so partial corruption stays diagnosable.
//
// Valid covers linkage and hash recomputation only. AllSignaturesValid is
// tracked separately because signature state may be unknown: a signature
// present without a configured verifier is a warning, not a failure.
type ChainVerificationResult struct {
	Valid              bool     `json:"valid"`
	ChainIntact        bool     `json:"chainIntact"`
	AllSignaturesValid bool     `json:"allSignaturesValid"`
	TotalEvents        int      `json:"totalEvents"`
	VerifiedEvents     int      `json:"verifiedEvents"`
	BrokenLinks        []int    `json:"brokenLinks"`
	TamperedEvents     []int    `json:"tamperedEvents"`
	InvalidSignatures  []int    `json:"invalidSignatures"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
}

// ChainVerifier independently re-validates a custody chain's linkage, event
// hashes, timestamp ordering, and (when configured) custodian signatures.
type ChainVerifier struct {
	verifier SignatureVerifier
}

// NewChainVerifier creates a verifier. The signature verifier is optional:
// without one, present signatures are reported as unverifiable warnings.
func NewChainVerifier(verifier SignatureVerifier) *ChainVerifier {
	return &ChainVerifier{verifier: verifier}
}

// Verify walks the event sequence and checks, per event: the previous-hash
// link, the recomputed canonical hash, non-decreasing timestamps (disorder
// is a warning, clock skew happens without malice), and the custodian
// signature if one is present and a verifier is configured.
func (v *ChainVerifier) Verify(events []CustodyEvent) ChainVerificationResult {
	result := ChainVerificationResult{
		BrokenLinks:       []int{},
		TamperedEvents:    []int{},
		InvalidSignatures: []int{},
		Errors:            []string{},
		Warnings:          []string{},
	}

	if len(events) == 0 {
		result.Valid = true
		result.ChainIntact = true
		result.AllSignaturesValid = true
		result.Warnings = append(result.Warnings, "empty chain of custody")
		return result
	}

	result.TotalEvents = len(events)
	result.ChainIntact = true
	result.AllSignaturesValid = true

	previousHash := ""
	var previousTimestamp time.Time
	haveTimestamp := false

	for i := range events {
		event := &events[i]

		if event.Chain.PreviousEventHash != previousHash {
			result.ChainIntact = false
			result.BrokenLinks = append(result.BrokenLinks, i)
			result.Errors = append(result.Errors,
				fmt.Sprintf("event %d: chain broken, expected previous hash %q, got %q",
					i, truncateHash(previousHash), truncateHash(event.Chain.PreviousEventHash)))
		}

		payload, err := event.CanonicalPayload()
		if err != nil {
			result.TamperedEvents = append(result.TamperedEvents, i)
			result.Errors = append(result.Errors,
				fmt.Sprintf("event %d: canonical serialization failed: %v", i, err))
		} else if computed := cryptoutils.SHA256.Sum(payload); computed != event.Chain.EventHash {
			result.TamperedEvents = append(result.TamperedEvents, i)
			result.Errors = append(result.Errors,
				fmt.Sprintf("event %d: hash mismatch, event may have been tampered", i))
		}

		if ts, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil {
			if haveTimestamp && ts.Before(previousTimestamp) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("event %d: timestamp out of order", i))
			}
			previousTimestamp = ts
			haveTimestamp = true
		}

		if event.Signature != nil {
			if v.verifier == nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("event %d: signature present but no verifier configured", i))
			} else if payload != nil {
				signature, err := base64.StdEncoding.DecodeString(event.Signature.CustodianSignature)
				if err != nil || v.verifier.Verify(payload, signature) != nil {
					result.AllSignaturesValid = false
					result.InvalidSignatures = append(result.InvalidSignatures, i)
					result.Errors = append(result.Errors,
						fmt.Sprintf("event %d: custodian signature invalid", i))
				}
			}
		}

		previousHash = event.Chain.EventHash
		result.VerifiedEvents++
	}

	result.Valid = result.ChainIntact && len(result.TamperedEvents) == 0
	return result
}

func truncateHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
