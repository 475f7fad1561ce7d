package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/radelabs/authcore/ledger"
)

// Logout revokes one refresh token. Idempotent: revoking an already
// revoked or absent token succeeds. A malformed token value is still a
// client error since it can never have been issued.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s == nil || s.refresh == nil {
		return ErrServiceNotReady
	}
	if refreshToken == "" {
		return nil
	}
	if _, err := uuid.Parse(refreshToken); err != nil {
		return ErrRefreshTokenMalformed
	}

	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, ledger.ErrRedisUnavailable) {
			return ErrBackendUnavailable
		}
		return err
	}

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, "", nil, nil)
	return nil
}

// LogoutAll revokes every outstanding refresh token for a user and
// reports how many were active. Outstanding access tokens stay valid
// until their short expiry.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	if s == nil || s.refresh == nil {
		return 0, ErrServiceNotReady
	}
	if userID == "" {
		return 0, ErrUserNotFound
	}

	n, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrRedisUnavailable) {
			return 0, ErrBackendUnavailable
		}
		return 0, err
	}

	s.metricInc(MetricLogoutAll)
	s.emitAudit(ctx, auditEventLogoutAll, true, userID, nil, nil)
	return n, nil
}
