// Package httpserver exposes the read-only verification API consumed by
// external audit tooling.
//
// Endpoints accept verification artifacts (Merkle proofs, custody event
// arrays, integrity metadata with observed per-file hashes) and return the
// engine's full diagnostic reports. The server never holds pack state or
// key material: everything needed for a check travels in the request.
//
// Operational endpoints follow the usual pattern: /livez, /readyz, /drain
// and /undrain for load-balancer coordination, and an optional pprof mount
// under /debug.
package httpserver
