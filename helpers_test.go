package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/radelabs/authcore/password"
	"github.com/radelabs/authcore/twofactor"
)

const (
	testEmail    = "demo@rade.com"
	testPassword = "Abcd123!@"

	staticCode     = "424242"
	staticRecovery = "ABCDE-FGHJK"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockCredentialStore struct {
	mu      sync.Mutex
	byEmail map[string]*User
	byID    map[string]*User

	createCalls     int
	lastLoginCalls  int
	updateHashCalls int

	failFinds bool
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		byEmail: map[string]*User{},
		byID:    map[string]*User{},
	}
}

func (s *mockCredentialStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinds {
		return nil, ErrBackendUnavailable
	}
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *mockCredentialStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinds {
		return nil, ErrBackendUnavailable
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *mockCredentialStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if _, ok := s.byEmail[user.Email]; ok {
		return ErrEmailTaken
	}
	clone := *user
	s.byEmail[user.Email] = &clone
	s.byID[user.ID] = &clone
	return nil
}

func (s *mockCredentialStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateHashCalls++
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *mockCredentialStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoginCalls++
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (s *mockCredentialStore) markVerified(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byEmail[email]; ok {
		u.Verified = true
	}
}

type testEnv struct {
	svc      *Service
	store    *mockCredentialStore
	redis    *redis.Client
	provider *twofactor.StaticProvider
	clock    *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Hash = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return buildTestEnv(t, mutate, nil)
}

func newTestEnvWithSink(t *testing.T, sink AuditSink) *testEnv {
	t.Helper()
	return buildTestEnv(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
	}, sink)
}

func buildTestEnv(t *testing.T, mutate func(*Config), sink AuditSink) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMockCredentialStore()
	provider := twofactor.NewStaticProvider(staticCode, staticRecovery)
	clock := newTestClock()

	builder := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithTwoFactorProvider(provider).
		WithClock(clock.Now)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	svc, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{
		svc:      svc,
		store:    store,
		redis:    client,
		provider: provider,
		clock:    clock,
	}
}

// registerAndLogin creates the standard test account and returns a
// fresh token pair.
func registerAndLogin(t *testing.T, env *testEnv) (userID string, pair *TokenPair) {
	t.Helper()
	ctx := context.Background()

	res, err := env.svc.Register(ctx, RegisterRequest{
		Email:    testEmail,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	login, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.TwoFactorRequired {
		t.Fatal("unexpected two-factor challenge for fresh account")
	}
	return res.UserID, login.Tokens
}

// enableTwoFactor walks the full enrollment for userID.
func enableTwoFactor(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.svc.EnableTwoFactor(ctx, userID)
	if err != nil {
		t.Fatalf("EnableTwoFactor failed: %v", err)
	}
	if len(setup.RecoveryCodes) == 0 {
		t.Fatal("expected recovery codes in setup material")
	}
	if err := env.svc.ConfirmTwoFactor(ctx, userID, staticCode); err != nil {
		t.Fatalf("ConfirmTwoFactor failed: %v", err)
	}
}
