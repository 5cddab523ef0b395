package cryptoutils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes v into a hash-stable byte form: compact output,
// struct fields in declaration order, map keys sorted (encoding/json sorts
// map keys by design). The same value always produces the same bytes, which
// makes the result safe to hash for event chaining and integrity metadata.
//
// HTML escaping is disabled so the serialized form matches what auditors see
// in the persisted JSON files byte for byte.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical serialization failed: %w", err)
	}
	// Encoder appends a trailing newline; strip it so the bytes are exactly
	// the compact JSON document.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalHash serializes v canonically and hashes the result.
func CanonicalHash(algorithm HashAlgorithm, v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return algorithm.Sum(data), nil
}
