package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/schoolerp/internal/cache"
)

const indexTTL = 24 * time.Hour

// fencedSet writes KEYS[1] and registers it in the index KEYS[2] only while the generation at
// KEYS[3] still equals ARGV[3].
var fencedSet = redislib.NewScript(`
local gen = redis.call('GET', KEYS[3]) or '0'
if gen ~= ARGV[3] then
	return 0
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('SADD', KEYS[2], KEYS[1])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

func generationKey(index string) string {
	return index + ":gen"
}

// CacheStore keeps cache entries in Redis. Index sets live next to the values so invalidation
// never needs a key scan.
type CacheStore struct {
	client redislib.UniversalClient
}

var _ cache.Store = (*CacheStore)(nil)

// NewCacheStore creates a Redis-backed cache store.
func NewCacheStore(client redislib.UniversalClient) *CacheStore {
	return &CacheStore{client: client}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, err
	}
	return raw, nil
}

func (s *CacheStore) Generation(ctx context.Context, index string) (int64, error) {
	gen, err := s.client.Get(ctx, generationKey(index)).Int64()
	if errors.Is(err, redislib.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, index string, gen int64) (bool, error) {
	if index == "" {
		if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return false, err
		}
		return true, nil
	}
	n, err := fencedSet.Run(ctx, s.client,
		[]string{key, index, generationKey(index)},
		value, ttl.Milliseconds(), strconv.FormatInt(gen, 10), indexTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheStore) Invalidate(ctx context.Context, index string) error {
	if err := s.client.Incr(ctx, generationKey(index)).Err(); err != nil {
		return err
	}
	members, err := s.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redislib.Nil) {
		return err
	}
	return s.client.Del(ctx, append(members, index)...).Err()
}

func (s *CacheStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
