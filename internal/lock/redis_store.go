package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// deleteIfHolderScript removes a lock key only when the stored record still
// belongs to the given holder. Decoding happens server-side so the
// compare-and-delete is a single atomic step.
var deleteIfHolderScript = redis.NewScript(`
    local v = redis.call('GET', KEYS[1])
    if not v then
        return 0
    end
    local ok, rec = pcall(cjson.decode, v)
    if not ok then
        return 0
    end
    if rec['locked_by_user_id'] == ARGV[1] then
        redis.call('DEL', KEYS[1])
        return 1
    end
    return 0
`)

// RedisStore implements Store on a shared Redis instance. TTL expiry is
// enforced natively by Redis, so expired locks simply vanish without any
// sweep on our side.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) DeleteIfHolder(ctx context.Context, key, holderID string) (bool, error) {
	n, err := deleteIfHolderScript.Run(ctx, s.rdb, []string{key}, holderID).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
