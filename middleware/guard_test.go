package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/radelabs/authcore"
	"github.com/radelabs/authcore/password"
)

type memoryStore struct {
	mu      sync.Mutex
	byEmail map[string]*authcore.User
	byID    map[string]*authcore.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byEmail: map[string]*authcore.User{},
		byID:    map[string]*authcore.User{},
	}
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memoryStore) Create(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return authcore.ErrEmailTaken
	}
	clone := *user
	s.byEmail[user.Email] = &clone
	s.byID[user.ID] = &clone
	return nil
}

func (s *memoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (s *memoryStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		u.LastLoginAt = at
	}
	return nil
}

func newTestService(t *testing.T) *authcore.Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Hash = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Audit.Enabled = false

	svc, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(newMemoryStore()).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc
}

func issueToken(t *testing.T, svc *authcore.Service) string {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.Register(ctx, authcore.RegisterRequest{
		Email:    "guard@rade.com",
		Password: "Abcd123!@",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := svc.Login(ctx, "guard@rade.com", "Abcd123!@")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res.Tokens.AccessToken
}

func TestGuardInjectsUserID(t *testing.T) {
	svc := newTestService(t)
	token := issueToken(t, svc)

	var gotID string
	handler := Guard(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Fatal("user id missing from context")
		}
		gotID = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotID == "" {
		t.Fatal("handler saw empty user id")
	}
}

func TestGuardReasonCodes(t *testing.T) {
	svc := newTestService(t)
	token := issueToken(t, svc)

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{"missing header", "", ReasonHeaderMissing},
		{"malformed prefix", "Token " + token, ReasonMalformedHeader},
		{"empty token", "Bearer ", ReasonEmptyToken},
		{"garbage token", "Bearer not-a-jwt", ReasonTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Guard(svc)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.reason {
				t.Fatalf("reason = %q, want %q", body["error"], tt.reason)
			}
		})
	}
}
