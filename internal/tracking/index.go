package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenKeyPrefix = "phishsim:token:"

// RedisIndex is a read-through cache in front of another Index. Token to id
// mappings never change, so entries only expire to bound memory.
type RedisIndex struct {
	rdb  *redis.Client
	next Index
	ttl  time.Duration
	log  *zap.Logger
}

func NewRedisIndex(rdb *redis.Client, next Index, ttl time.Duration, logger *zap.Logger) *RedisIndex {
	return &RedisIndex{rdb: rdb, next: next, ttl: ttl, log: logger}
}

func (r *RedisIndex) EmailIDByToken(ctx context.Context, token string) (int64, error) {
	key := tokenKeyPrefix + token

	id, err := r.rdb.Get(ctx, key).Int64()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.log.Warn("token cache read failed", zap.String("token", token), zap.Error(err))
	}

	id, err = r.next.EmailIDByToken(ctx, token)
	if err != nil {
		return 0, err
	}

	if err := r.rdb.Set(ctx, key, id, r.ttl).Err(); err != nil {
		r.log.Warn("token cache write failed", zap.String("token", token), zap.Error(err))
	}
	return id, nil
}
