// Package merkle implements the integrity engine for evidence packs.
//
// A Tree is a binary hash tree over a pack's content snapshot: leaves are
// per-file content hashes ordered by sorted path, internal nodes hash the
// concatenation of their children, and odd levels duplicate their last node.
// The root hash fingerprints the entire pack.
//
// Three verification flows are provided:
//
//   - Proof.Verify: O(log n) inclusion proof check for a single file,
//     requiring only the file hash and its sibling path.
//   - Proof.VerifyContent: the same check starting from raw file bytes.
//   - VerifyPack: O(n) diff of a current snapshot against persisted
//     IntegrityMetadata, reporting tampered, missing, and unauthorized new
//     files plus an independent root-hash rebuild.
//
// Verification reports findings as data (TamperReport) instead of errors so
// callers can see what was tampered, not only that something was.
package merkle
