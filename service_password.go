package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/radelabs/authcore/password"
	"github.com/radelabs/authcore/twofactor"
)

// ChangePassword replaces the account password after proving the
// current one. Every outstanding refresh token for the user is revoked
// so other devices must log in again. Accounts with two-factor enabled
// must additionally present a current code when the service is
// configured to re-verify on change.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if s == nil || s.credentials == nil || s.hasher == nil {
		return ErrServiceNotReady
	}
	if req.UserID == "" {
		return ErrUserNotFound
	}

	user, err := s.credentials.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return ErrBackendUnavailable
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		s.metricInc(MetricPasswordChangeFailed)
		s.emitAudit(ctx, auditEventPasswordChangeFailed, false, user.ID, ErrInvalidCredentials, map[string]string{
			"reason": "current_password_mismatch",
		})
		return ErrInvalidCredentials
	}

	if err := password.Validate(req.NewPassword); err != nil {
		s.metricInc(MetricPasswordChangeFailed)
		s.emitAudit(ctx, auditEventPasswordChangeFailed, false, user.ID, err, map[string]string{
			"reason": "password_policy",
		})
		return err
	}

	if err := s.verifyTwoFactorForChange(ctx, user.ID, req.TwoFactorCode); err != nil {
		s.metricInc(MetricPasswordChangeFailed)
		s.emitAudit(ctx, auditEventPasswordChangeFailed, false, user.ID, err, map[string]string{
			"reason": "two_factor",
		})
		return err
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		s.metricInc(MetricPasswordChangeFailed)
		return err
	}
	if err := s.credentials.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		s.metricInc(MetricPasswordChangeFailed)
		s.emitAudit(ctx, auditEventPasswordChangeFailed, false, user.ID, err, map[string]string{
			"reason": "store_update",
		})
		return ErrBackendUnavailable
	}

	if _, err := s.refresh.RevokeAllForUser(ctx, user.ID); err != nil {
		// The password did change; the caller must know that even
		// though session invalidation needs a retry.
		log.Print("authcore: session revocation after password change failed")
		s.emitAudit(ctx, auditEventPasswordChangeFailed, false, user.ID, err, map[string]string{
			"reason": "revocation_failed",
		})
		return ErrBackendUnavailable
	}

	s.metricInc(MetricPasswordChanged)
	s.emitAudit(ctx, auditEventPasswordChanged, true, user.ID, nil, nil)
	return nil
}

// verifyTwoFactorForChange applies the RequireTwoFactorOnChange policy.
// Accounts without two-factor pass through untouched.
func (s *Service) verifyTwoFactorForChange(ctx context.Context, userID, code string) error {
	if !s.config.Password.RequireTwoFactorOnChange || s.twoFactor == nil {
		return nil
	}

	enabled, err := s.twoFactor.IsEnabled(ctx, userID)
	if err != nil {
		return ErrBackendUnavailable
	}
	if !enabled {
		return nil
	}
	if code == "" {
		return ErrTwoFactorRequired
	}

	switch {
	case isSixDigitCode(code):
		err = s.twoFactor.Verify(ctx, userID, code)
	case isRecoveryCodeShape(code):
		err = s.twoFactor.VerifyRecovery(ctx, userID, code)
	default:
		return ErrInvalidCodeFormat
	}
	if err != nil {
		if errors.Is(err, twofactor.ErrStoreUnavailable) {
			return ErrBackendUnavailable
		}
		return ErrTwoFactorIncorrect
	}
	return nil
}
