package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissing is returned when an empty token string is presented.
	ErrMissing = errors.New("access token missing")
	// ErrExpired is returned when a well-formed token is past its expiry.
	ErrExpired = errors.New("access token expired")
	// ErrMalformed is returned for any token that fails parsing or
	// signature verification. Callers must not distinguish a tampered
	// token from a garbled one.
	ErrMalformed = errors.New("access token malformed or invalid signature")
)

// Config controls token issuance and verification. Secret is the shared
// HMAC key; AccessTTL should be short (minutes, not hours) because
// access tokens are verified statelessly and cannot be revoked.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
	Now       func() time.Time
}

// Issuer mints and verifies HS256-signed access tokens. Verification
// requires no storage lookup, so request handlers can scale
// horizontally behind a shared secret.
type Issuer struct {
	config Config
}

// AccessClaims is the claim set carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// NewIssuer validates cfg and returns an Issuer. The secret must be at
// least 32 bytes; leeway is capped at two minutes so skewed clocks
// cannot stretch token lifetimes meaningfully.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Issuer{config: cfg}, nil
}

// Issue signs a fresh access token for userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("empty subject")
	}

	now := i.config.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.AccessTTL)),
			Issuer:    i.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.config.Secret)
}

// Verify checks signature, expiry, and well-formedness, and returns the
// subject user id. Failures map to exactly one of [ErrMissing],
// [ErrExpired], or [ErrMalformed].
func (i *Issuer) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissing
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.config.Now),
		jwt.WithExpirationRequired(),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrMalformed
	}

	claims, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return "", ErrMalformed
	}

	return claims.Subject, nil
}
