// Package custody maintains the append-only, hash-linked, optionally
// signed event log recording the lifecycle of an evidence pack: creation,
// sealing, access, transfer, verification, legal hold, deletion.
//
// Each event's hash covers a canonical serialization of all fields except
// the hash itself and the signature, and embeds the previous event's hash,
// so the sequence forms a tamper-evident chain: altering any recorded field
// changes that event's recomputed hash, and inserting or removing events
// breaks the linkage.
//
// Signing is an explicit optional capability. A chain built without a
// signer records unsigned events; a signer that fails at record time
// degrades to an unsigned event rather than blocking the custody record.
// The ChainVerifier reports linkage breaks and hash mismatches as data in a
// ChainVerificationResult rather than errors, so audit tooling sees the
// full diagnostic even for a corrupted chain.
package custody
