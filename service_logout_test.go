package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, pair := registerAndLogin(t, env)

	if err := env.svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := env.svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout must succeed, got %v", err)
	}

	// Absent token and no token at all also succeed.
	if err := env.svc.Logout(ctx, "5d41a61e-5af6-4a9e-b515-5f8b6f2f0f3a"); err != nil {
		t.Fatalf("Logout of unknown token failed: %v", err)
	}
	if err := env.svc.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout without token failed: %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, pair := registerAndLogin(t, env)

	if err := env.svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("revoked token must not rotate")
	}
}

func TestLogoutRejectsMalformedToken(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.svc.Logout(context.Background(), "not-a-uuid"); !errors.Is(err, ErrRefreshTokenMalformed) {
		t.Fatalf("got %v, want ErrRefreshTokenMalformed", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	userID, first := registerAndLogin(t, env)

	second, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	n, err := env.svc.LogoutAll(ctx, userID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("LogoutAll revoked %d sessions, want 2", n)
	}

	if _, err := env.svc.Refresh(ctx, first.RefreshToken); err == nil {
		t.Fatal("first session must be revoked")
	}
	if _, err := env.svc.Refresh(ctx, second.Tokens.RefreshToken); err == nil {
		t.Fatal("second session must be revoked")
	}
}
