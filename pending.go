package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radelabs/authcore/internal"
)

// pendingChallenge is a login that passed the password check but still
// owes a second factor. It lives in Redis under an opaque challenge ID
// until confirmed, exhausted, or expired.
type pendingChallenge struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	Attempts  int    `json:"attempts"`
}

type pendingChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func newPendingChallengeStore(client redis.UniversalClient, prefix string, now func() time.Time) *pendingChallengeStore {
	return &pendingChallengeStore{redis: client, prefix: prefix, now: now}
}

func (s *pendingChallengeStore) key(challengeID string) string {
	return s.prefix + ":c:" + challengeID
}

// Create stores a fresh challenge and returns its opaque ID.
func (s *pendingChallengeStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	id, err := internal.NewOpaqueID()
	if err != nil {
		return "", err
	}
	challengeID := id.String()

	record := pendingChallenge{
		UserID:    userID,
		ExpiresAt: s.now().Add(ttl).Unix(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return challengeID, nil
}

func (s *pendingChallengeStore) Get(ctx context.Context, challengeID string) (*pendingChallenge, error) {
	if _, err := internal.ParseOpaqueID(challengeID); err != nil {
		return nil, ErrChallengeInvalid
	}
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var record pendingChallenge
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrChallengeInvalid
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrChallengeExpired
	}
	return &record, nil
}

// Consume deletes the challenge and reports whether this caller won the
// delete. Exactly one concurrent confirmation can win.
func (s *pendingChallengeStore) Consume(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under WATCH. When the counter
// reaches maxAttempts the challenge is deleted and exceeded is true.
func (s *pendingChallengeStore) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (exceeded bool, err error) {
	const maxRetries = 8
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		txErr := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var record pendingChallenge
			if err := json.Unmarshal(data, &record); err != nil {
				return ErrChallengeInvalid
			}
			if s.now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			if record.Attempts >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				ttl = time.Second
			}
			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(txErr, redis.TxFailedErr) {
			exceeded = false
			continue
		}
		if txErr != nil {
			if errors.Is(txErr, redis.Nil) {
				return false, ErrChallengeInvalid
			}
			if errors.Is(txErr, ErrChallengeExpired) || errors.Is(txErr, ErrChallengeInvalid) {
				return false, txErr
			}
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, txErr)
		}
		return exceeded, nil
	}
	return false, ErrChallengeInvalid
}
