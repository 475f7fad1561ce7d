package authcore

import (
	"context"
	"errors"

	"github.com/radelabs/authcore/twofactor"
)

// EnableTwoFactor begins enrollment and returns the setup material
// (shared secret, enrollment URI, recovery codes). The material is
// shown exactly once; enrollment stays pending until ConfirmTwoFactor
// proves possession with a valid code.
func (s *Service) EnableTwoFactor(ctx context.Context, userID string) (*twofactor.Setup, error) {
	if s == nil || s.twoFactor == nil || s.credentials == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, ErrBackendUnavailable
	}

	setup, err := s.twoFactor.Enable(ctx, user.ID, user.Email)
	if err != nil {
		switch {
		case errors.Is(err, twofactor.ErrAlreadyEnabled):
			return nil, ErrTwoFactorAlreadyEnabled
		case errors.Is(err, twofactor.ErrStoreUnavailable):
			return nil, ErrBackendUnavailable
		}
		return nil, err
	}
	return setup, nil
}

// ConfirmTwoFactor finishes enrollment with the first valid code. From
// here on every login for the account is gated.
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	if s == nil || s.twoFactor == nil {
		return ErrServiceNotReady
	}
	if !isSixDigitCode(code) {
		return ErrInvalidCodeFormat
	}

	if err := s.twoFactor.Verify(ctx, userID, code); err != nil {
		switch {
		case errors.Is(err, twofactor.ErrNotEnrolled):
			return ErrTwoFactorNotEnabled
		case errors.Is(err, twofactor.ErrStoreUnavailable):
			return ErrBackendUnavailable
		}
		return ErrTwoFactorIncorrect
	}

	s.metricInc(MetricTwoFactorSuccess)
	s.emitAudit(ctx, auditEventTwoFactorEnabled, true, userID, nil, nil)
	return nil
}

// DisableTwoFactor clears secret material and recovery codes and stops
// gating logins. Idempotent.
func (s *Service) DisableTwoFactor(ctx context.Context, userID string) error {
	if s == nil || s.twoFactor == nil {
		return ErrServiceNotReady
	}

	if err := s.twoFactor.Disable(ctx, userID); err != nil {
		if errors.Is(err, twofactor.ErrStoreUnavailable) {
			return ErrBackendUnavailable
		}
		return err
	}

	s.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, nil, nil)
	return nil
}

// TwoFactorEnabled reports whether logins for the account are gated.
func (s *Service) TwoFactorEnabled(ctx context.Context, userID string) (bool, error) {
	if s == nil {
		return false, ErrServiceNotReady
	}
	if s.twoFactor == nil {
		return false, nil
	}

	enabled, err := s.twoFactor.IsEnabled(ctx, userID)
	if err != nil {
		if errors.Is(err, twofactor.ErrStoreUnavailable) {
			return false, ErrBackendUnavailable
		}
		return false, err
	}
	return enabled, nil
}

// ResendTwoFactor asks the provider to redeliver a code for a pending
// challenge. Device-bound providers have nothing to send and return
// ErrTwoFactorResendUnsupported.
func (s *Service) ResendTwoFactor(ctx context.Context, challengeID string) error {
	if s == nil || s.twoFactor == nil || s.pending == nil {
		return ErrServiceNotReady
	}

	challenge, err := s.pending.Get(ctx, challengeID)
	if err != nil {
		return err
	}

	if err := s.twoFactor.Resend(ctx, challenge.UserID); err != nil {
		switch {
		case errors.Is(err, twofactor.ErrResendUnsupported):
			return ErrTwoFactorResendUnsupported
		case errors.Is(err, twofactor.ErrStoreUnavailable):
			return ErrBackendUnavailable
		}
		return err
	}
	return nil
}
