// Package interfaces defines the shared types and capability boundaries of
// the evidence engine.
//
// The package contains no business logic. It exists so that the engine's
// packages (merkle, envelope, custody, pack) and the pluggable provider
// packages (kms, storage) can depend on a common contract without depending
// on each other:
//
//   - KeyManager: the key management boundary that mints and unwraps
//     per-pack data encryption keys. Implementations live in the kms package
//     (local PBKDF2, Shamir shares, AWS KMS, Vault transit).
//
//   - StorageBackend: content-addressed persistence for sealed pack
//     artifacts. Implementations live in the storage package (file, S3,
//     IPFS, multi-backend).
//
//   - PackID and ContentSnapshot: the identity of an evidence pack and the
//     transient path-to-bytes map collectors hand to the engine.
//
// Sentinel errors (ErrKeyGeneration, ErrKeyUnwrap, ErrContentNotFound,
// ErrBackendUnavailable) are declared here so callers can classify failures
// with errors.Is regardless of which provider produced them.
package interfaces
