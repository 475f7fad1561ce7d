// Package middleware adapts the Authorization header contract to
// authcore.Service validation for net/http handlers.
//
// # Guards
//
//   - [Guard] — reads the bearer token, validates it, and injects the
//     authenticated user ID into the request context.
//
// Rejections carry distinct reason codes: a missing header, a
// malformed prefix, an empty token, an expired token, and an invalid
// token each map to their own code so clients can react precisely.
// All of them answer 401.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Service calls. It does
// NOT implement authentication logic itself — all decisions are
// delegated to Service.Validate.
package middleware
