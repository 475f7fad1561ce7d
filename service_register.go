package authcore

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/radelabs/authcore/password"
)

// normalizeEmail lowercases and trims the address. Every store lookup
// goes through this, so uniqueness is case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmailShape(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject the "Name <addr>" form; the store holds bare addresses.
	return addr.Address == email
}

// Register creates an unverified account. No tokens are issued;
// verification, when required, is the host's flow.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if s == nil || s.credentials == nil || s.hasher == nil {
		return nil, ErrServiceNotReady
	}

	email := normalizeEmail(req.Email)
	if !validEmailShape(email) {
		s.metricInc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrEmailInvalid, map[string]string{
			"reason": "email_shape",
		})
		return nil, ErrEmailInvalid
	}

	if err := password.Validate(req.Password); err != nil {
		s.metricInc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegisterFailure, false, "", err, map[string]string{
			"reason": "password_policy",
		})
		return nil, err
	}

	if _, err := s.credentials.FindByEmail(ctx, email); err == nil {
		s.metricInc(MetricRegisterFailure)
		s.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrEmailTaken, map[string]string{
			"reason": "email_taken",
		})
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		s.metricInc(MetricRegisterFailure)
		return nil, ErrBackendUnavailable
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.metricInc(MetricRegisterFailure)
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Company:      req.Company,
		Phone:        req.Phone,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.credentials.Create(ctx, user); err != nil {
		s.metricInc(MetricRegisterFailure)
		if errors.Is(err, ErrEmailTaken) {
			// Lost the race against a concurrent registration.
			s.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrEmailTaken, map[string]string{
				"reason": "email_taken",
			})
			return nil, ErrEmailTaken
		}
		return nil, ErrBackendUnavailable
	}

	s.metricInc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, nil, map[string]string{
		"email": email,
	})

	return &RegisterResult{
		UserID:   user.ID,
		Email:    user.Email,
		Verified: user.Verified,
	}, nil
}
