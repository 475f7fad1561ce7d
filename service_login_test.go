package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginReturnsTokenPair(t *testing.T) {
	env := newTestEnv(t, nil)

	userID, pair := registerAndLogin(t, env)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens from login")
	}

	gotID, err := env.svc.Validate(pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if gotID != userID {
		t.Fatalf("Validate subject = %q, want %q", gotID, userID)
	}

	if env.store.lastLoginCalls != 1 {
		t.Fatalf("lastLoginCalls = %d, want 1", env.store.lastLoginCalls)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, unknownErr := env.svc.Login(ctx, "nobody@rade.com", testPassword)
	_, wrongPassErr := env.svc.Login(ctx, testEmail, "Wrong123!@")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongPassErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", wrongPassErr)
	}
	if unknownErr.Error() != wrongPassErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", unknownErr, wrongPassErr)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := env.svc.Login(ctx, "  DEMO@Rade.Com ", testPassword)
	if err != nil {
		t.Fatalf("Login with unnormalized email failed: %v", err)
	}
	if res.Tokens == nil {
		t.Fatal("expected tokens")
	}
}

func TestLoginBlocksUnverifiedWhenRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Register.RequireVerifiedForLogin = true
	})
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RegisterRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := env.svc.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("got %v, want ErrAccountUnverified", err)
	}

	env.store.markVerified(testEmail)
	if _, err := env.svc.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("Login after verification failed: %v", err)
	}
}

func TestLoginWithTwoFactorReturnsChallengeNotTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.TwoFactorRequired || res.Challenge == "" {
		t.Fatalf("expected a pending challenge, got %+v", res)
	}
	if res.Tokens != nil {
		t.Fatal("tokens must not be issued before the second factor")
	}
}

func TestCompleteTwoFactorIssuesTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	done, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticCode)
	if err != nil {
		t.Fatalf("CompleteTwoFactor failed: %v", err)
	}
	if done.Tokens == nil || done.Tokens.AccessToken == "" {
		t.Fatal("expected tokens after completing the challenge")
	}
	if done.UserID != userID {
		t.Fatalf("UserID = %q, want %q", done.UserID, userID)
	}

	// The challenge is single-use.
	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticCode); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("reused challenge: got %v, want ErrChallengeInvalid", err)
	}
}

func TestCompleteTwoFactorRejectsBadFormatWithoutProvider(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, code); !errors.Is(err, ErrInvalidCodeFormat) {
			t.Fatalf("code %q: got %v, want ErrInvalidCodeFormat", code, err)
		}
	}

	// Format rejections never consumed an attempt; the right code
	// still works.
	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticCode); err != nil {
		t.Fatalf("CompleteTwoFactor after format rejections failed: %v", err)
	}
}

func TestCompleteTwoFactorWrongCodeThenAttemptsExceeded(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.TwoFactor.MaxAttempts = 2
	})
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, "000000"); !errors.Is(err, ErrTwoFactorIncorrect) {
		t.Fatalf("first wrong code: got %v, want ErrTwoFactorIncorrect", err)
	}
	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, "000000"); !errors.Is(err, ErrChallengeAttemptsExceeded) {
		t.Fatalf("second wrong code: got %v, want ErrChallengeAttemptsExceeded", err)
	}
	// The challenge was destroyed with the cap.
	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticCode); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("after exceeding: got %v, want ErrChallengeInvalid", err)
	}
}

func TestCompleteTwoFactorExpiredChallenge(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	env.clock.Advance(env.svc.config.TwoFactor.ChallengeTTL + time.Second)

	if _, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticCode); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("got %v, want ErrChallengeExpired", err)
	}
}

func TestCompleteTwoFactorAcceptsRecoveryCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, _ := registerAndLogin(t, env)
	enableTwoFactor(t, env, userID)

	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	done, err := env.svc.CompleteTwoFactor(ctx, res.Challenge, staticRecovery)
	if err != nil {
		t.Fatalf("CompleteTwoFactor with recovery code failed: %v", err)
	}
	if done.Tokens == nil {
		t.Fatal("expected tokens after recovery completion")
	}

	// Recovery codes are single-use.
	res2, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if _, err := env.svc.CompleteTwoFactor(ctx, res2.Challenge, staticRecovery); !errors.Is(err, ErrTwoFactorIncorrect) {
		t.Fatalf("reused recovery code: got %v, want ErrTwoFactorIncorrect", err)
	}
}

func TestValidateDistinguishesFailureKinds(t *testing.T) {
	env := newTestEnv(t, nil)

	_, pair := registerAndLogin(t, env)

	if _, err := env.svc.Validate(""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("empty token: got %v, want ErrTokenMissing", err)
	}
	if _, err := env.svc.Validate("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v, want ErrInvalidToken", err)
	}

	env.clock.Advance(env.svc.config.Token.AccessTTL + time.Minute)
	if _, err := env.svc.Validate(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: got %v, want ErrTokenExpired", err)
	}
}
