package authcore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/radelabs/authcore/ledger"
	"github.com/radelabs/authcore/password"
	"github.com/radelabs/authcore/token"
	"github.com/radelabs/authcore/twofactor"
)

// Builder assembles a Service. Configure it during initialization and
// call Build exactly once.
type Builder struct {
	config Config

	redis       redis.UniversalClient
	credentials CredentialStore
	provider    twofactor.Provider
	auditSink   AuditSink
	now         func() time.Time

	built bool
}

// New returns a Builder preloaded with DefaultConfig. The token secret
// must still be supplied through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the refresh ledger and the
// pending-login challenge store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithTwoFactorProvider sets the second-factor implementation.
// Optional; without one, no account can have two-factor enabled and
// logins never produce challenges.
func (b *Builder) WithTwoFactorProvider(p twofactor.Provider) *Builder {
	b.provider = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Tests use this to control
// expiry; production code should not call it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, wires every component, and
// returns the ready Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:    b.config.Token.Secret,
		AccessTTL: b.config.Token.AccessTTL,
		Issuer:    b.config.Token.Issuer,
		Leeway:    b.config.Token.Leeway,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password.Hash)
	if err != nil {
		return nil, err
	}

	refresh, err := ledger.NewStore(b.redis, b.config.Refresh.RedisPrefix, b.config.Refresh.TTL, now)
	if err != nil {
		return nil, err
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:      b.config,
		credentials: b.credentials,
		tokens:      issuer,
		hasher:      hasher,
		refresh:     refresh,
		twoFactor:   b.provider,
		pending:     newPendingChallengeStore(b.redis, b.config.TwoFactor.RedisPrefix, now),
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		now:         now,
		dummyHash:   dummyHash,
	}
	if b.config.Metrics.Enabled {
		svc.metrics = newMetrics()
	}

	b.built = true

	return svc, nil
}
