package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/radelabs/authcore/ledger"
)

// Refresh rotates a refresh token for a fresh pair. The presented
// token is revoked and linked to its successor atomically. Presenting
// an already-rotated token is treated as theft: every session of the
// affected user is revoked before the error surfaces.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s == nil || s.refresh == nil || s.tokens == nil {
		return nil, ErrServiceNotReady
	}

	// Shape gate before any ledger lookup.
	if _, err := uuid.Parse(refreshToken); err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshTokenMalformed, map[string]string{
			"reason": "malformed",
		})
		return nil, ErrRefreshTokenMalformed
	}

	successor, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		var reuse *ledger.ReuseError
		switch {
		case errors.As(err, &reuse):
			s.metricInc(MetricRefreshReuseDetected)
			if _, revokeErr := s.refresh.RevokeAllForUser(ctx, reuse.UserID); revokeErr != nil {
				log.Print("authcore: mass revocation after reuse detection failed")
			}
			s.emitAudit(ctx, auditEventRefreshReuseDetected, false, reuse.UserID, ErrTokenReuseDetected, nil)
			return nil, ErrTokenReuseDetected
		case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrExpired):
			s.metricInc(MetricRefreshFailure)
			s.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrInvalidToken, map[string]string{
				"reason": "unknown_or_expired",
			})
			return nil, ErrInvalidToken
		case errors.Is(err, ledger.ErrRedisUnavailable):
			s.metricInc(MetricRefreshFailure)
			return nil, ErrBackendUnavailable
		default:
			s.metricInc(MetricRefreshFailure)
			return nil, err
		}
	}

	access, err := s.tokens.Issue(successor.UserID)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return nil, err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, successor.UserID, nil, nil)

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     successor.Token,
		RefreshExpiresAt: time.Unix(successor.ExpiresAt, 0).UTC(),
	}, nil
}
