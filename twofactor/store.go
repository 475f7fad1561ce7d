package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// State is the persisted per-user two-factor record. Secret material is
// opaque to everything outside this package.
type State struct {
	Status         Status   `json:"status"`
	Secret         []byte   `json:"secret"`
	LastCounter    int64    `json:"last_counter"`
	RecoveryHashes []string `json:"recovery_hashes,omitempty"`
}

// StateStore persists State keyed by user id. Update must apply fn
// under a per-user atomicity guarantee: concurrent Updates for the same
// user serialize, and a lost race retries rather than clobbering.
type StateStore interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, userID string, state *State) error
	Delete(ctx context.Context, userID string) error
	Update(ctx context.Context, userID string, fn func(*State) error) (*State, error)
}

const redisStateRetries = 16

// RedisStateStore keeps two-factor state in Redis with optimistic
// concurrency (WATCH) for read-modify-write updates.
type RedisStateStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStateStore returns a StateStore on client. prefix namespaces
// the keys; the default is "a2f".
func NewRedisStateStore(client *redis.Client, prefix string) (*RedisStateStore, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}
	if prefix == "" {
		prefix = "a2f"
	}
	return &RedisStateStore{redis: client, prefix: prefix}, nil
}

func (s *RedisStateStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *RedisStateStore) Load(ctx context.Context, userID string) (*State, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: corrupt state: %v", ErrStoreUnavailable, err)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, userID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Update applies fn to the current state under WATCH and retries a
// bounded number of times on contention. fn errors abort without a
// write and pass through unchanged.
func (s *RedisStateStore) Update(ctx context.Context, userID string, fn func(*State) error) (*State, error) {
	key := s.key(userID)

	for i := 0; i < redisStateRetries; i++ {
		var updated *State
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrNotEnrolled
				}
				return err
			}

			var state State
			if err := json.Unmarshal(data, &state); err != nil {
				return err
			}

			if err := fn(&state); err != nil {
				return err
			}

			encoded, err := json.Marshal(&state)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}

			updated = &state
			return nil
		}, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotEnrolled) || isCallerError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil, fmt.Errorf("%w: update contention not resolved", ErrStoreUnavailable)
}

// isCallerError keeps fn-originated sentinels from being wrapped as
// backend failures.
func isCallerError(err error) bool {
	return errors.Is(err, ErrCodeIncorrect) ||
		errors.Is(err, ErrCodeReplayed) ||
		errors.Is(err, ErrRecoveryInvalid) ||
		errors.Is(err, ErrAlreadyEnabled)
}

// MemoryStateStore is an in-process StateStore for tests and examples.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*State)}
}

func (s *MemoryStateStore) Load(_ context.Context, userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	clone := *state
	clone.RecoveryHashes = append([]string(nil), state.RecoveryHashes...)
	return &clone, nil
}

func (s *MemoryStateStore) Save(_ context.Context, userID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *state
	clone.RecoveryHashes = append([]string(nil), state.RecoveryHashes...)
	s.states[userID] = &clone
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *MemoryStateStore) Update(_ context.Context, userID string, fn func(*State) error) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[userID]
	if !ok {
		return nil, ErrNotEnrolled
	}

	clone := *state
	clone.RecoveryHashes = append([]string(nil), state.RecoveryHashes...)
	if err := fn(&clone); err != nil {
		return nil, err
	}
	s.states[userID] = &clone

	result := clone
	result.RecoveryHashes = append([]string(nil), clone.RecoveryHashes...)
	return &result, nil
}
