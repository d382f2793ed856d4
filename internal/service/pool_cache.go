package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// PoolCache 缓存候选题 ID 列表；抽样在缓存之后进行，缓存不会固定抽题结果
type PoolCache interface {
	Get(ctx context.Context, key string) ([]uint, bool, error)
	Set(ctx context.Context, key string, ids []uint, ttl time.Duration) error
}

type RedisPoolCache struct {
	Redis *redis.Client
}

// NewRedisPoolCache rdb 为空时返回 nil，调用方直接查库
func NewRedisPoolCache(rdb *redis.Client) PoolCache {
	if rdb == nil {
		return nil
	}
	return &RedisPoolCache{Redis: rdb}
}

func (c *RedisPoolCache) Get(ctx context.Context, key string) ([]uint, bool, error) {
	val, err := c.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []uint
	if err := json.Unmarshal(val, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *RedisPoolCache) Set(ctx context.Context, key string, ids []uint, ttl time.Duration) error {
	if ids == nil {
		ids = []uint{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, key, b, ttl).Err()
}
