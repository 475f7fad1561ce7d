package twofactor

import (
	"context"
	"crypto/subtle"
	"sync"
)

// StaticProvider accepts one fixed code for every user. It exists for
// tests and local development ONLY: the code is a process-wide constant
// and offers no second factor whatsoever. Never wire it in production.
type StaticProvider struct {
	code         string
	recoveryCode string

	mu     sync.Mutex
	status map[string]Status
}

// NewStaticProvider returns a test-only provider that verifies code and
// accepts recoveryCode once per enable cycle.
func NewStaticProvider(code, recoveryCode string) *StaticProvider {
	return &StaticProvider{
		code:         code,
		recoveryCode: recoveryCode,
		status:       make(map[string]Status),
	}
}

func (p *StaticProvider) IsEnabled(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[userID] == StatusEnabled, nil
}

func (p *StaticProvider) Enable(_ context.Context, userID, _ string) (*Setup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status[userID] == StatusEnabled {
		return nil, ErrAlreadyEnabled
	}
	p.status[userID] = StatusPendingConfirmation
	return &Setup{
		Secret:        "STATIC-TEST-SECRET",
		EnrollmentURI: "otpauth://totp/test",
		RecoveryCodes: []string{p.recoveryCode},
	}, nil
}

func (p *StaticProvider) Disable(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.status, userID)
	return nil
}

func (p *StaticProvider) Verify(_ context.Context, userID, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status[userID] == StatusDisabled {
		return ErrNotEnrolled
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(p.code)) != 1 {
		return ErrCodeIncorrect
	}
	p.status[userID] = StatusEnabled
	return nil
}

func (p *StaticProvider) VerifyRecovery(_ context.Context, userID, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status[userID] != StatusEnabled {
		return ErrRecoveryInvalid
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(p.recoveryCode)) != 1 {
		return ErrRecoveryInvalid
	}
	// single-use within an enable cycle
	p.recoveryCode = ""
	return nil
}

func (p *StaticProvider) Resend(context.Context, string) error {
	return nil
}

// Status reports the state machine position, mirroring
// [TOTPProvider.Status] for tests.
func (p *StaticProvider) Status(_ context.Context, userID string) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[userID], nil
}
