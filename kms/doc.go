// Package kms implements the key management boundary for evidence packs.
//
// Every provider implements interfaces.KeyManager: mint a fresh per-pack
// data encryption key together with its wrapped form, and unwrap a
// previously wrapped key. The key-encryption key (KEK) never leaves the
// provider; the engine only handles data keys in memory and their wrapped
// form on disk.
//
// The package includes these implementations:
//
// # LocalKeyManager
//
// Derives the KEK from a master secret with PBKDF2-HMAC-SHA256 and wraps
// data keys with AES-256-GCM. Suitable for development and single-host
// deployments where no key service is available.
//
// # ShamirKeyManager
//
// Protects the KEK with Shamir's Secret Sharing: the key is split into N
// shares distributed to evidence custodians and reconstructed in memory
// only after a threshold of shares has been submitted. No single custodian
// can unlock archived evidence alone.
//
// # AWSKMSKeyManager
//
// Delegates data key generation and unwrap to AWS KMS with an encryption
// context binding keys to evidence-pack use. The KEK lives in KMS.
//
// # VaultKeyManager
//
// Uses the HashiCorp Vault transit engine's datakey and decrypt endpoints.
// Wrapped keys are transit ciphertext strings and the KEK lives in Vault.
//
// # Failure semantics
//
// Generation failures wrap interfaces.ErrKeyGeneration and abort pack
// creation; a pack cannot exist without its key. Unwrap failures wrap
// interfaces.ErrKeyUnwrap and are distinguishable from content
// authentication failures, so read-only verification flows can retry them.
package kms
