// Package twofactor implements the optional second-factor challenge.
//
// The per-user state machine is Disabled -> PendingConfirmation ->
// Enabled: enrollment issues setup material but does not gate logins
// until the user proves possession with one valid code. The code
// semantics are pluggable through [Provider]; [TOTPProvider] is the
// production variant and [StaticProvider] is a test-only stub.
package twofactor
