// Package storage provides content-addressed persistence for sealed
// evidence pack artifacts.
//
// Backends implement the interfaces.StorageBackend contract over the local
// filesystem, Amazon S3 (or compatible object stores), and IPFS. Artifacts
// are addressed by the SHA-256 hash of their bytes, split into manifest and
// archive namespaces. Backends only ever see manifests and ciphertext; the
// engine never hands plaintext pack content to storage.
//
// The factory builds backends from location URIs (file://, s3://, ipfs://)
// and can aggregate several into a MultiStorageBackend that writes to all
// available backends and reads from the first that has the artifact.
package storage
