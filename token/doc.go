// Package token mints and verifies the short-lived signed access tokens
// used between logins. Tokens are stateless: every claim needed for
// verification travels inside the token, and revocation is handled at
// the refresh layer, never here.
package token
