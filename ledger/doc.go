// Package ledger tracks issued refresh tokens, their rotation chain,
// and revocation state in Redis.
//
// Rotation is the security core: a refresh token may be exchanged for a
// successor exactly once. The exchange runs as a Lua script so the
// revoke-parent/install-successor pair is atomic, and presenting a
// token that was already rotated surfaces as reuse detection rather
// than a silent second success. This bounds the blast radius of a
// stolen refresh token to one unused rotation step.
package ledger
