package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned for missing, expired or revoked sessions.
	ErrNotFound = errors.New("session not found")
	// ErrRefreshReuse is returned when a rotated refresh token is presented
	// again. The session is revoked before returning.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[3])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("DEL", KEYS[2])
  redis.call("SREM", KEYS[3], ARGV[3])
  return 2
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
return 3
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Record is the server-side view of a session. Tokens are not stored; the
// refresh token is kept only as a hash under a sibling key.
type Record struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists session records in Redis with a per-user index.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store using prefix for every key it writes.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) refreshKey(sessionID string) string {
	return s.prefix + ":r:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save persists rec and the refresh hash with ttl.
func (s *Store) Save(ctx context.Context, rec *Record, refreshHash [32]byte, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.SessionID), data, ttl)
		pipe.Set(ctx, s.refreshKey(rec.SessionID), hex.EncodeToString(refreshHash[:]), ttl)
		pipe.SAdd(ctx, s.userKey(rec.UserID), rec.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the record for sessionID. Expired records are removed and
// reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if !time.Now().Before(rec.ExpiresAt) {
		if err := s.deleteSessionAndIndex(ctx, rec.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete removes a session and its index entry. Deleting a missing session
// is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.deleteSessionAndIndex(ctx, rec.UserID, sessionID)
}

// DeleteAllForUser removes every session indexed for userID.
//
// Sessions created between the index read and the delete survive until
// their TTL; callers needing a hard cut can call it twice.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	ids, err := s.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.key(id), s.refreshKey(id))
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionIDs returns the indexed session IDs for userID.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// RotateRefresh swaps the stored refresh hash from provided to next. A
// mismatch means an old refresh token was replayed: the session is revoked
// and ErrRefreshReuse returned.
func (s *Store) RotateRefresh(ctx context.Context, userID, sessionID string, provided, next [32]byte) error {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.refreshKey(sessionID), s.key(sessionID), s.userKey(userID)},
		hex.EncodeToString(provided[:]),
		hex.EncodeToString(next[:]),
		sessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch result {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound, rotateStatusExpired:
		return ErrNotFound
	case rotateStatusMismatch:
		return ErrRefreshReuse
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, result)
	}
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	keys := []string{s.key(sessionID), s.userKey(userID), s.refreshKey(sessionID)}
	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
