package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/radelabs/authcore/ledger"
	"github.com/radelabs/authcore/password"
	"github.com/radelabs/authcore/token"
	"github.com/radelabs/authcore/twofactor"
)

// Service is the assembled authentication core. Construct one through
// the Builder; a Service is safe for concurrent use and immutable
// after Build.
type Service struct {
	config      Config
	credentials CredentialStore
	tokens      *token.Issuer
	hasher      *password.Hasher
	refresh     *ledger.Store
	twoFactor   twofactor.Provider
	pending     *pendingChallengeStore
	audit       *auditDispatcher
	metrics     *Metrics
	now         func() time.Time

	// dummyHash is verified against when the email is unknown, so both
	// invalid-credential causes pay the same hashing cost.
	dummyHash string
}

// Close flushes the audit dispatcher. Safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure since the service started.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

// emitAudit builds the event envelope lazily so disabled audit costs a
// nil check and nothing else.
func (s *Service) emitAudit(ctx context.Context, eventType string, success bool, userID string, cause error, metadata map[string]string) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: s.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        ClientIP(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	s.audit.Emit(ctx, event)
}

// Validate checks an access token and returns the subject user ID. The
// check is stateless; revocation takes effect only at refresh time.
func (s *Service) Validate(tokenStr string) (string, error) {
	if s == nil || s.tokens == nil {
		return "", ErrServiceNotReady
	}

	userID, err := s.tokens.Verify(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrMissing):
			return "", ErrTokenMissing
		case errors.Is(err, token.ErrExpired):
			return "", ErrTokenExpired
		default:
			return "", ErrInvalidToken
		}
	}
	return userID, nil
}

// issuePair mints an access token and a fresh refresh record for user.
func (s *Service) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.refresh.Issue(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrRedisUnavailable) {
			return nil, ErrBackendUnavailable
		}
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     rec.Token,
		RefreshExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
	}, nil
}
