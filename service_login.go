package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/radelabs/authcore/twofactor"
)

// Login authenticates an email/password pair. Unknown emails and wrong
// passwords both surface as ErrInvalidCredentials, with the password
// hash verified in both cases so the two causes share a timing class.
// Accounts with two-factor enabled get a pending challenge instead of
// tokens; follow up with CompleteTwoFactor.
func (s *Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if s == nil || s.credentials == nil || s.hasher == nil {
		return nil, ErrServiceNotReady
	}

	email = normalizeEmail(email)

	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, ErrBackendUnavailable
		}
		_, _ = s.hasher.Verify(pass, s.dummyHash)
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{
			"email":  email,
			"reason": "unknown_email",
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrInvalidCredentials, map[string]string{
			"email":  email,
			"reason": "password_mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	if s.config.Register.RequireVerifiedForLogin && !user.Verified {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrAccountUnverified, map[string]string{
			"email":  email,
			"reason": "unverified",
		})
		return nil, ErrAccountUnverified
	}

	if s.twoFactor != nil {
		enabled, err := s.twoFactor.IsEnabled(ctx, user.ID)
		if err != nil {
			s.metricInc(MetricLoginFailure)
			s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, err, map[string]string{
				"reason": "two_factor_lookup",
			})
			return nil, ErrBackendUnavailable
		}
		if enabled {
			challengeID, err := s.pending.Create(ctx, user.ID, s.config.TwoFactor.ChallengeTTL)
			if err != nil {
				s.metricInc(MetricLoginFailure)
				return nil, err
			}
			s.metricInc(MetricTwoFactorRequired)
			s.emitAudit(ctx, auditEventTwoFactorRequired, true, user.ID, nil, nil)
			return &LoginResult{
				UserID:            user.ID,
				TwoFactorRequired: true,
				Challenge:         challengeID,
			}, nil
		}
	}

	return s.finishLogin(ctx, user.ID)
}

// finishLogin mints the token pair once every gate has passed.
func (s *Service) finishLogin(ctx context.Context, userID string) (*LoginResult, error) {
	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, userID, err, map[string]string{
			"reason": "token_issue",
		})
		return nil, err
	}

	// Last-login is informational; a store hiccup must not undo an
	// otherwise successful login.
	if err := s.credentials.UpdateLastLogin(ctx, userID, s.now().UTC()); err != nil {
		log.Print("authcore: last-login update failed")
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, userID, nil, nil)

	return &LoginResult{
		UserID: userID,
		Tokens: pair,
	}, nil
}

// CompleteTwoFactor finishes a pending login with a six-digit code or
// a recovery code. The challenge is single-use: concurrent completions
// of the same challenge yield at most one token pair.
func (s *Service) CompleteTwoFactor(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	if s == nil || s.twoFactor == nil || s.pending == nil {
		return nil, ErrServiceNotReady
	}

	challenge, err := s.pending.Get(ctx, challengeID)
	if err != nil {
		s.metricInc(MetricTwoFactorFailure)
		s.emitAudit(ctx, auditEventTwoFactorFailure, false, "", err, map[string]string{
			"reason": "challenge_lookup",
		})
		return nil, err
	}
	userID := challenge.UserID

	// Syntactic gate: anything that is neither a six-digit code nor a
	// canonical recovery code never reaches the provider.
	var verifyErr error
	switch {
	case isSixDigitCode(code):
		verifyErr = s.twoFactor.Verify(ctx, userID, code)
	case isRecoveryCodeShape(code):
		verifyErr = s.twoFactor.VerifyRecovery(ctx, userID, code)
	default:
		s.metricInc(MetricTwoFactorFailure)
		s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, ErrInvalidCodeFormat, nil)
		return nil, ErrInvalidCodeFormat
	}

	if verifyErr != nil {
		if errors.Is(verifyErr, twofactor.ErrStoreUnavailable) {
			s.metricInc(MetricTwoFactorFailure)
			s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, verifyErr, nil)
			return nil, ErrBackendUnavailable
		}

		exceeded, recErr := s.pending.RecordFailure(ctx, challengeID, s.config.TwoFactor.MaxAttempts)
		s.metricInc(MetricTwoFactorFailure)
		switch {
		case recErr != nil:
			s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, recErr, nil)
			return nil, recErr
		case exceeded:
			s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, ErrChallengeAttemptsExceeded, nil)
			return nil, ErrChallengeAttemptsExceeded
		default:
			s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, ErrTwoFactorIncorrect, nil)
			return nil, ErrTwoFactorIncorrect
		}
	}

	won, err := s.pending.Consume(ctx, challengeID)
	if err != nil {
		s.metricInc(MetricTwoFactorFailure)
		return nil, err
	}
	if !won {
		// A concurrent completion already claimed this challenge.
		s.metricInc(MetricTwoFactorFailure)
		s.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, ErrChallengeInvalid, map[string]string{
			"reason": "already_consumed",
		})
		return nil, ErrChallengeInvalid
	}

	s.metricInc(MetricTwoFactorSuccess)
	s.emitAudit(ctx, auditEventTwoFactorSuccess, true, userID, nil, nil)

	return s.finishLogin(ctx, userID)
}

func isSixDigitCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// isRecoveryCodeShape matches the XXXXX-XXXXX form produced at
// enrollment. Membership in the actual code set stays with the
// provider.
func isRecoveryCodeShape(code string) bool {
	if len(code) != 11 || code[5] != '-' {
		return false
	}
	for i := 0; i < len(code); i++ {
		if i == 5 {
			continue
		}
		c := code[i]
		if (c < '2' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
