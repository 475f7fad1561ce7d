package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL: 15 * time.Minute,
		Issuer:    "authcore-test",
		Now: func() time.Time {
			return *now
		},
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	return iss
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Now()
	iss := testIssuer(t, &now)

	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	uid, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if uid != "user-1" {
		t.Fatalf("subject = %q, want user-1", uid)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	iss := testIssuer(t, &now)

	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := iss.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestVerifyLeewayToleratesSmallSkew(t *testing.T) {
	now := time.Now()
	iss, err := NewIssuer(Config{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL: time.Minute,
		Leeway:    5 * time.Second,
		Now: func() time.Time {
			return now
		},
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	now = now.Add(time.Minute + 3*time.Second)
	if _, err := iss.Verify(tok); err != nil {
		t.Fatalf("Verify within leeway failed: %v", err)
	}
}

func TestVerifyFailureKinds(t *testing.T) {
	now := time.Now()
	iss := testIssuer(t, &now)

	if _, err := iss.Verify(""); !errors.Is(err, ErrMissing) {
		t.Fatalf("empty token err = %v, want ErrMissing", err)
	}

	if _, err := iss.Verify("not-a-jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("garbage token err = %v, want ErrMalformed", err)
	}

	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := iss.Verify(tampered); !errors.Is(err, ErrMalformed) {
		t.Fatalf("tampered token err = %v, want ErrMalformed", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	now := time.Now()
	iss := testIssuer(t, &now)

	other, err := NewIssuer(Config{
		Secret:    []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	tok, err := other.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := iss.Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("foreign secret err = %v, want ErrMalformed", err)
	}
}

func TestNewIssuerRejectsWeakConfig(t *testing.T) {
	if _, err := NewIssuer(Config{Secret: []byte("short"), AccessTTL: time.Minute}); err == nil {
		t.Fatal("short secret accepted")
	}
	if _, err := NewIssuer(Config{Secret: []byte("0123456789abcdef0123456789abcdef")}); err == nil {
		t.Fatal("zero TTL accepted")
	}
	if _, err := NewIssuer(Config{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL: time.Minute,
		Leeway:    time.Hour,
	}); err == nil {
		t.Fatal("oversized leeway accepted")
	}
}
