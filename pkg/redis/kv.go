package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// KV 是基于 Redis 的字节键值缓存，TTL<=0 表示不过期。
type KV struct {
	rdb *rd.Client
}

func NewKV(rdb *rd.Client) *KV {
	return &KV{rdb: rdb}
}

// Get 查询键值。found=false 表示 key 不存在。
func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := k.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Set 写入并刷新 TTL。
func (k *KV) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return k.rdb.Set(ctx, key, val, ttl).Err()
}

// Delete 删除若干键，不存在的键忽略。
func (k *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return k.rdb.Del(ctx, keys...).Err()
}

// DeletePattern 按模式批量失效（SCAN 而非 KEYS，避免阻塞 Redis）。
func (k *KV) DeletePattern(ctx context.Context, pattern string) error {
	iter := k.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return k.Delete(ctx, keys...)
}
