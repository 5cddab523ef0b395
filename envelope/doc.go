// Package envelope implements per-file authenticated encryption for
// evidence packs using the envelope pattern: each pack gets one short-lived
// data encryption key, sealed ("wrapped") by the key management boundary,
// and every file is encrypted under that key with AES-256-GCM.
//
// Associated data binds each ciphertext to its pack ID and file path, so an
// encrypted file from one pack cannot be silently substituted into another.
// Nonces are 96-bit CSPRNG values drawn fresh per file; the persisted blob
// format is nonce followed by ciphertext+tag.
//
// Decryption failures surface as ErrAuthenticationFailed and are always
// fatal for the affected file. Proceeding on a cryptographic failure is
// unsafe by construction, so there is no best-effort mode.
package envelope
