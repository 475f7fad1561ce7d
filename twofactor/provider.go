package twofactor

import (
	"context"
	"errors"
)

var (
	// ErrNotEnrolled is returned when an operation requires existing
	// two-factor state and the user has none.
	ErrNotEnrolled = errors.New("two-factor not enrolled")
	// ErrAlreadyEnabled is returned by Enable when the user already
	// confirmed enrollment.
	ErrAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrCodeIncorrect is returned when a syntactically valid code
	// fails semantic verification.
	ErrCodeIncorrect = errors.New("two-factor code incorrect")
	// ErrCodeReplayed is returned when a code verifies at a time step
	// that was already consumed.
	ErrCodeReplayed = errors.New("two-factor code replayed")
	// ErrRecoveryInvalid is returned when a recovery code is unknown
	// or was already consumed.
	ErrRecoveryInvalid = errors.New("recovery code invalid")
	// ErrResendUnsupported is returned by providers with nothing to
	// deliver (TOTP codes live on the user's device).
	ErrResendUnsupported = errors.New("resend not supported by this provider")
	// ErrStoreUnavailable wraps state-store backend failures.
	ErrStoreUnavailable = errors.New("two-factor store unavailable")
)

// Status is the per-user challenge state machine position.
type Status uint8

const (
	// StatusDisabled is the initial state; logins are not gated.
	StatusDisabled Status = iota
	// StatusPendingConfirmation means setup material was issued but
	// the user has not yet proven possession with a valid code.
	// Logins are not gated yet.
	StatusPendingConfirmation
	// StatusEnabled gates every login behind a code verification.
	StatusEnabled
)

func (s Status) String() string {
	switch s {
	case StatusPendingConfirmation:
		return "pending_confirmation"
	case StatusEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// Setup is the material handed to the user exactly once at enrollment.
// The shared secret and recovery codes are never retrievable again.
type Setup struct {
	Secret        string
	EnrollmentURI string
	RecoveryCodes []string
}

// Provider is the pluggable two-factor capability. Implementations own
// the secret material and the state machine; callers never see secrets
// after enrollment. Swapping the provider must not require changes to
// the session service.
//
// Verify and VerifyRecovery receive codes that already passed the
// caller's syntactic gate; they are responsible for semantics only,
// including single-use enforcement of recovery codes.
type Provider interface {
	IsEnabled(ctx context.Context, userID string) (bool, error)
	Enable(ctx context.Context, userID, account string) (*Setup, error)
	Disable(ctx context.Context, userID string) error
	Verify(ctx context.Context, userID, code string) error
	VerifyRecovery(ctx context.Context, userID, code string) error
	Resend(ctx context.Context, userID string) error
}
