package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

const refreshKeyPrefix = "refresh:"

// ErrRefreshNotFound is returned for unknown, expired or revoked tokens.
var ErrRefreshNotFound = errors.New("refresh token not found")

// RefreshStore remembers issued refresh tokens until they expire or are
// revoked.
type RefreshStore interface {
	Save(ctx context.Context, jti string, userID uint, ttl time.Duration) error
	Lookup(ctx context.Context, jti string) (uint, error)
	Delete(ctx context.Context, jti string) error
}

// RedisRefreshStore keeps refresh tokens in Redis keyed by token id.
type RedisRefreshStore struct {
	rdb *redis.Client
}

func NewRedisRefreshStore(rdb *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{rdb: rdb}
}

func (s *RedisRefreshStore) Save(ctx context.Context, jti string, userID uint, ttl time.Duration) error {
	return s.rdb.Set(ctx, refreshKeyPrefix+jti, userID, ttl).Err()
}

func (s *RedisRefreshStore) Lookup(ctx context.Context, jti string) (uint, error) {
	v, err := s.rdb.Get(ctx, refreshKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrRefreshNotFound
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (s *RedisRefreshStore) Delete(ctx context.Context, jti string) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+jti).Err()
}

// MemoryRefreshStore is the single-instance fallback when Redis is not
// configured.
type MemoryRefreshStore struct {
	c *cache.Cache
}

func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (s *MemoryRefreshStore) Save(_ context.Context, jti string, userID uint, ttl time.Duration) error {
	s.c.Set(jti, userID, ttl)
	return nil
}

func (s *MemoryRefreshStore) Lookup(_ context.Context, jti string) (uint, error) {
	v, ok := s.c.Get(jti)
	if !ok {
		return 0, ErrRefreshNotFound
	}
	return v.(uint), nil
}

func (s *MemoryRefreshStore) Delete(_ context.Context, jti string) error {
	s.c.Delete(jti)
	return nil
}
