// Package cryptoutils provides the deterministic hashing primitives shared
// by the integrity and custody subsystems.
//
// HashAlgorithm dispatches between SHA-256, SHA-384 and SHA-512 and defines
// the Merkle node combination rule. CanonicalJSON produces a hash-stable
// serialization (fixed field order, sorted map keys, compact form) used both
// for custody event hashing and for persisted metadata, so hash stability
// never depends on incidental map ordering.
package cryptoutils
