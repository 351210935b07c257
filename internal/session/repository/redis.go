package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dcv-session-gateway/internal/session/domain"
)

const redisKeyPrefix = "dcv:session:"

const (
	activateStatusMissing  int64 = -1
	activateStatusConflict int64 = 0
	activateStatusSet      int64 = 1
)

const activateSessionScript = `
local current = redis.call("HGET", KEYS[1], "activated_at")
if not current then
  return -1
end
if tonumber(current) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "activated_at", ARGV[2])
return 1
`

// createSessionScript inserts the hash and its expiry only if the key is absent.
// ARGV: expireAtUnix, then field/value pairs.
const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("EXPIREAT", KEYS[1], ARGV[1])
return 1
`

var (
	activateSessionLua = redis.NewScript(activateSessionScript)
	createSessionLua   = redis.NewScript(createSessionScript)
)

// RedisRepository stores each session as a hash at dcv:session:<id>.
// Keys expire retention after the session's expire_at.
type RedisRepository struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisRepository returns a Redis-backed session repository.
func NewRedisRepository(client redis.UniversalClient, retention time.Duration) *RedisRepository {
	return &RedisRepository{client: client, retention: retention}
}

func (r *RedisRepository) key(id string) string {
	return redisKeyPrefix + id
}

// GetByID returns the session for id, or nil if not found.
func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeSessionHash(id, fields)
}

// Create writes the session hash and its expiry in one script, failing with ErrDuplicate if the key exists.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	expireAt := time.Unix(s.ExpireAt, 0).Add(r.retention).Unix()
	created, err := createSessionLua.Run(ctx, r.client, []string{r.key(s.ID)},
		expireAt,
		"secret", s.Secret,
		"backend_id", s.BackendID,
		"username", s.Username,
		"created_at", s.CreatedAt,
		"expire_at", s.ExpireAt,
		"activated_at", s.ActivatedAt,
	).Int64()
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	}
	return nil
}

// CompareAndSetActivation runs the check-and-set as a server-side Lua script.
func (r *RedisRepository) CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error) {
	status, err := activateSessionLua.Run(ctx, r.client, []string{r.key(id)}, expected, activatedAt).Int64()
	if err != nil {
		return false, err
	}
	switch status {
	case activateStatusSet:
		return true, nil
	case activateStatusConflict, activateStatusMissing:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected activation status %d", status)
	}
}

// PingContext reports whether Redis is reachable.
func (r *RedisRepository) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeSessionHash(id string, fields map[string]string) (*domain.Session, error) {
	s := &domain.Session{
		ID:        id,
		Secret:    fields["secret"],
		BackendID: fields["backend_id"],
		Username:  fields["username"],
	}
	for name, dst := range map[string]*int64{
		"created_at":   &s.CreatedAt,
		"expire_at":    &s.ExpireAt,
		"activated_at": &s.ActivatedAt,
	} {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session %s: corrupt %s: %w", id, name, err)
		}
		*dst = v
	}
	return s, nil
}

var _ Repository = (*RedisRepository)(nil)
