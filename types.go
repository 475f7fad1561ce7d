package authcore

import (
	"context"
	"time"
)

// User is the identity record owned by the credential store. Emails are
// stored normalized to lowercase; the service normalizes before every
// lookup.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	FirstName    string
	LastName     string
	Company      string
	Phone        string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// CredentialStore is the durable record of users. Implementations must
// treat email lookups as exact matches on the normalized form, return
// [ErrUserNotFound] for missing rows, and [ErrEmailTaken] from Create
// on a duplicate email. See the postgres package for the reference
// implementation.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is the outcome of Login. Exactly one of Tokens or
// Challenge is set: accounts with two-factor enabled get a pending
// challenge instead of tokens.
type LoginResult struct {
	UserID            string
	Tokens            *TokenPair
	TwoFactorRequired bool
	Challenge         string
}

// RegisterRequest carries the registration input. Shape validation
// beyond email and password policy (lengths of profile fields, phone
// formats) belongs to the host's request-validation layer.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Company   string
	Phone     string
}

// RegisterResult confirms a created account. No tokens are issued at
// registration.
type RegisterResult struct {
	UserID   string
	Email    string
	Verified bool
}

// ChangePasswordRequest carries a password change. TwoFactorCode is
// required when the account has two-factor enabled and the service is
// configured to re-verify on password change.
type ChangePasswordRequest struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	TwoFactorCode   string
}
