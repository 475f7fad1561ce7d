package authcore

import "errors"

var (
	// ErrServiceNotReady is returned when a Service method runs before
	// Build wired all dependencies.
	ErrServiceNotReady = errors.New("service not ready")

	// ErrInvalidCredentials deliberately merges "no such user" and
	// "wrong password" so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified is returned when login requires a verified
	// account and the account is not verified yet.
	ErrAccountUnverified = errors.New("account unverified")

	// ErrEmailInvalid is returned for a registration email that fails
	// shape validation.
	ErrEmailInvalid = errors.New("invalid email address")
	// ErrEmailTaken is returned when the normalized email is already
	// registered. Credential stores return it from Create.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is the credential-store sentinel for missing
	// users. It never escapes Login; there it collapses into
	// ErrInvalidCredentials.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenMissing is returned when no access token was presented.
	ErrTokenMissing = errors.New("access token missing")
	// ErrTokenExpired is returned for a well-formed access token past
	// its expiry.
	ErrTokenExpired = errors.New("access token expired")
	// ErrInvalidToken is returned for malformed or wrongly signed
	// access tokens, and for refresh tokens that are unknown or
	// expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRefreshTokenMalformed is returned before any ledger lookup
	// when the presented refresh token is not a well-formed opaque
	// identifier.
	ErrRefreshTokenMalformed = errors.New("malformed refresh token")
	// ErrTokenReuseDetected is a security incident: an already-rotated
	// refresh token was presented. All sessions of the affected user
	// are revoked as a side effect before this error is returned.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// ErrTwoFactorRequired is returned by Login when the account has
	// two-factor enabled; the caller must follow up with
	// CompleteTwoFactor using the returned challenge.
	ErrTwoFactorRequired = errors.New("two-factor verification required")
	// ErrInvalidCodeFormat is returned when a submitted code is not
	// six ASCII digits (or a recovery code in canonical form). The
	// provider is never consulted.
	ErrInvalidCodeFormat = errors.New("invalid two-factor code format")
	// ErrTwoFactorIncorrect is returned when a well-formed code fails
	// verification.
	ErrTwoFactorIncorrect = errors.New("two-factor code incorrect")
	// ErrTwoFactorAlreadyEnabled is returned by EnableTwoFactor for an
	// account that already confirmed enrollment.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTwoFactorNotEnabled is returned by operations that require a
	// confirmed enrollment.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrTwoFactorResendUnsupported is returned when the configured
	// provider has nothing to deliver.
	ErrTwoFactorResendUnsupported = errors.New("two-factor resend unsupported")

	// ErrChallengeInvalid is returned for an unknown or already
	// consumed pending-login challenge.
	ErrChallengeInvalid = errors.New("two-factor challenge invalid")
	// ErrChallengeExpired is returned when the pending-login challenge
	// aged out before completion.
	ErrChallengeExpired = errors.New("two-factor challenge expired")
	// ErrChallengeAttemptsExceeded is returned after too many failed
	// completion attempts for one challenge.
	ErrChallengeAttemptsExceeded = errors.New("two-factor challenge attempts exceeded")

	// ErrBackendUnavailable wraps collaborator timeouts and failures.
	// Mutating operations are never retried internally.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
