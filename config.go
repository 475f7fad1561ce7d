package authcore

import (
	"errors"
	"time"

	"github.com/radelabs/authcore/password"
)

// Config is the full service configuration. Build validates it once;
// after that it is treated as immutable.
type Config struct {
	Token     TokenConfig
	Refresh   RefreshConfig
	Password  PasswordConfig
	TwoFactor TwoFactorConfig
	Register  RegisterConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig controls access-token issuance. Secret is the shared
// HS256 key and must be at least 32 bytes.
type TokenConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// RefreshConfig controls the refresh-token ledger.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

// PasswordConfig wraps the hashing costs and the password-change
// policy knob.
type PasswordConfig struct {
	Hash password.Config
	// RequireTwoFactorOnChange demands a current two-factor code on
	// ChangePassword for accounts with two-factor enabled.
	RequireTwoFactorOnChange bool
}

// TwoFactorConfig controls the pending-login challenge that bridges
// Login and CompleteTwoFactor.
type TwoFactorConfig struct {
	ChallengeTTL time.Duration
	MaxAttempts  int
	RedisPrefix  string
}

// RegisterConfig controls registration and login gating.
type RegisterConfig struct {
	// RequireVerifiedForLogin blocks logins until the account's
	// verification flag is set by the host's verification flow.
	RequireVerifiedForLogin bool
}

// AuditConfig controls the async activity-event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns a production-shaped configuration. The token
// secret is intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "authcore",
			Leeway:    5 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:         30 * 24 * time.Hour,
			RedisPrefix: "arl",
		},
		Password: PasswordConfig{
			Hash:                     password.DefaultConfig(),
			RequireTwoFactorOnChange: true,
		},
		TwoFactor: TwoFactorConfig{
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
			RedisPrefix:  "apc",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.AccessTTL > time.Hour {
		return errors.New("access TTL must be positive and short-lived")
	}
	if cfg.Refresh.TTL <= cfg.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.TwoFactor.ChallengeTTL <= 0 {
		return errors.New("two-factor challenge TTL must be positive")
	}
	if cfg.TwoFactor.MaxAttempts <= 0 {
		return errors.New("two-factor challenge attempts must be positive")
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	return nil
}
