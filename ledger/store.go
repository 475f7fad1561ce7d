package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the presented token has no record,
	// either because it never existed or because it aged out.
	ErrNotFound = errors.New("refresh token not found")
	// ErrExpired is returned when the record exists but is past expiry.
	ErrExpired = errors.New("refresh token expired")
	// ErrReuseDetected is returned when an already-revoked token is
	// presented. This is a theft indicator, not a client bug.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRedisUnavailable wraps every backend failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// ReuseError carries the owning user of a reused token so callers can
// revoke that user's remaining sessions. It unwraps to
// [ErrReuseDetected].
type ReuseError struct {
	UserID string
	Token  string
}

func (e *ReuseError) Error() string {
	return "refresh token reuse detected for user " + e.UserID
}

func (e *ReuseError) Unwrap() error {
	return ErrReuseDetected
}

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusReuse    int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript is the single-successful-rotation invariant. It marks
// the parent revoked and installs the successor in one atomic step, so
// N concurrent rotations of the same token produce exactly one
// successor. A revoked parent stays in Redis for its remaining TTL to
// keep the reuse signal alive.
const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local rec = cjson.decode(data)
if rec["revoked"] then
  return {2, rec["user_id"]}
end
if tonumber(rec["expires_at"]) <= tonumber(ARGV[1]) then
  return {1}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return {1}
end

rec["revoked"] = true
rec["replaced_by"] = ARGV[2]
redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
redis.call("SET", KEYS[2], ARGV[3], "PX", tonumber(ARGV[4]))
redis.call("SADD", KEYS[3], ARGV[2])
return {3}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

local rec = cjson.decode(data)
if rec["revoked"] then
  return 0
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return 0
end

rec["revoked"] = true
redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local data = redis.call("GET", key)
  if data then
    local rec = cjson.decode(data)
    if not rec["revoked"] then
      local ttl = redis.call("PTTL", key)
      if ttl > 0 then
        rec["revoked"] = true
        redis.call("SET", key, cjson.encode(rec), "PX", ttl)
        revoked = revoked + 1
      end
    end
  else
    redis.call("SREM", KEYS[1], id)
  end
end
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Store is the Redis-backed refresh-token ledger. All mutating
// operations run as Lua scripts so that rotation and revocation are
// serialized per token without client-side locking.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore returns a ledger Store. prefix namespaces the Redis keys;
// ttl is the refresh-token lifetime (long-lived, e.g. 30 days).
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration, now func() time.Time) (*Store, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}
	if prefix == "" {
		prefix = "arl"
	}
	if ttl <= 0 {
		return nil, errors.New("invalid refresh TTL")
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: client, prefix: prefix, ttl: ttl, now: now}, nil
}

func (s *Store) recordKey(token string) string {
	return s.prefix + ":t:" + token
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Issue creates a fresh active record for userID and persists it with
// the configured TTL. The token identifier is a v4 UUID.
func (s *Store) Issue(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}

	now := s.now()
	rec := &Record{
		Token:     uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.Token), data, s.ttl)
		pipe.SAdd(ctx, s.userKey(userID), rec.Token)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return rec, nil
}

// Rotate exchanges the presented token for a successor record. The
// parent is revoked and the successor installed atomically; the
// successor is linked from the parent through replaced_by. A revoked
// parent yields a [ReuseError]; absent and expired tokens yield
// [ErrNotFound] and [ErrExpired].
func (s *Store) Rotate(ctx context.Context, token string) (*Record, error) {
	// The successor must carry the parent's user id. Read it first;
	// the script re-checks every condition atomically, so this read
	// is advisory and cannot create a second successor.
	parent, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	succ := &Record{
		Token:     uuid.NewString(),
		UserID:    parent.UserID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	data, err := json.Marshal(succ)
	if err != nil {
		return nil, err
	}

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(token), s.recordKey(succ.Token), s.userKey(succ.UserID)},
		now.Unix(),
		succ.Token,
		data,
		s.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrNotFound
	case rotateStatusExpired:
		return nil, ErrExpired
	case rotateStatusReuse:
		userID := ""
		if len(parts) > 1 {
			if v, ok := parts[1].(string); ok {
				userID = v
			}
		}
		return nil, &ReuseError{UserID: userID, Token: token}
	case rotateStatusRotated:
		return succ, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Revoke marks a single record revoked. Revoking an absent or
// already-revoked token is a no-op, which makes logout idempotent.
func (s *Store) Revoke(ctx context.Context, token string) error {
	_, err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(token)}).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForUser revokes every live record for userID and returns
// how many were revoked. Used for logout-everywhere, password change,
// and the reuse-detected response.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	result, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":t:",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	revoked, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid revoke-all script response", ErrRedisUnavailable)
	}
	return int(revoked), nil
}

// Get fetches a record without mutating any state. Expired-but-present
// records are returned as-is; callers decide how to treat them.
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt ledger record: %v", ErrRedisUnavailable, err)
	}
	return &rec, nil
}

// ActiveCountForUser counts the user's records that are still active.
func (s *Store) ActiveCountForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.now()
	active := 0
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return 0, err
		}
		if rec.Active(now) {
			active++
		}
	}
	return active, nil
}

// Ping reports Redis availability, for host health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
