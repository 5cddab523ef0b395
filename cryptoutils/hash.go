package cryptoutils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashAlgorithm selects the digest used for content hashing. The algorithm
// is recorded in integrity metadata so packs can be re-verified later with
// the same digest.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "SHA-256"
	SHA384 HashAlgorithm = "SHA-384"
	SHA512 HashAlgorithm = "SHA-512"
)

// ParseHashAlgorithm validates an algorithm name from persisted metadata.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(s) {
	case SHA256, SHA384, SHA512:
		return HashAlgorithm(s), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %q", s)
	}
}

// New returns a fresh hash.Hash for the algorithm. Unknown algorithms fall
// back to SHA-256, matching the default used throughout the engine.
func (a HashAlgorithm) New() hash.Hash {
	switch a {
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// Sum computes the hex-encoded digest of data.
func (a HashAlgorithm) Sum(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Combine hashes the concatenation of two hex digests. This is the node
// combination rule of the Merkle tree: parent = H(left ++ right) over the
// hex string encodings, so proofs can be verified from hex metadata alone.
func (a HashAlgorithm) Combine(left, right string) string {
	return a.Sum([]byte(left + right))
}

// String returns the algorithm name as recorded in metadata.
func (a HashAlgorithm) String() string {
	return string(a)
}
