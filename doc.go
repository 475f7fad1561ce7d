// Package authcore provides an authentication and session-lifecycle
// core with JWT access tokens, rotating opaque refresh tokens with
// reuse detection, and an optional two-factor challenge gate.
//
// The package is designed for concurrent server workloads: Service
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder],
// [Config], and value types (TokenPair, LoginResult, MetricsSnapshot).
// Token signing lives in the token package, hashing and policy in
// password, the refresh ledger in ledger, and the two-factor state
// machine in twofactor. Durable user records come from a host-supplied
// [CredentialStore]; the postgres package is the reference
// implementation.
//
// # What this package must NOT do
//
//   - Expose Redis clients, ledger records, or secret material in its
//     public API.
//   - Perform I/O outside of Service methods (construction via Builder
//     hashes one throwaway password and nothing else).
//   - Retry mutating collaborator calls; rotation and revocation run
//     at most once per request.
//
// # Performance contract
//
// Validate is the hot path. It verifies the access token statelessly
// and never touches Redis. Login, Refresh, and the two-factor flows
// are allowed a small constant number of Redis round-trips per call.
package authcore
