// Package pack assembles the persisted form of an evidence pack and reopens
// it for audit.
//
// A sealed pack directory holds manifest.json (pack identity, encryption
// metadata, chain of custody), checksums.json (Merkle integrity metadata),
// and content/ with one envelope-encrypted blob per declared file. Sealing
// writes content and checksums before the manifest that carries the custody
// chain, so an interrupted build never produces a custody record for
// content that does not exist on disk.
//
// Verification decrypts the declared content, diffs it against the recorded
// per-file hashes, independently rebuilds the Merkle root, flags undeclared
// files found on disk, and re-validates the custody chain. The combined
// report is diagnostic data, not an error: tampering is something auditors
// inspect, not an exception to swallow.
package pack
