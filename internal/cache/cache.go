package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"food_order/internal/model"
	rediskey "food_order/pkg/redis"

	lru "github.com/hashicorp/golang-lru/v2"
)

// KV 缓存后端：Redis（pkg/redis.KV）或进程内 Memory。
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// GetJSON 读取并解码，found=false 表示未命中。
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	b, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// 脏数据当作未命中并清掉。
		_ = kv.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON 编码后写入。
func SetJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, b, ttl)
}

type entry struct {
	val     []byte
	expires time.Time // 零值表示不过期
}

// Memory 进程内 LRU，未配置 Redis 时使用；每个键独立 TTL。
type Memory struct {
	mu  sync.Mutex
	c   *lru.Cache[string, entry]
	now func() time.Time
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{c: c, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.c.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.c.Add(key, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.c.Remove(k)
	}
	return nil
}

// DeletePattern 支持 glob 语法（与 Redis SCAN MATCH 的常用子集一致）。
func (m *Memory) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.c.Keys() {
		if ok, _ := path.Match(pattern, k); ok {
			m.c.Remove(k)
		}
	}
	return nil
}

// Orders 订单快照缓存，只做加速，从不作为状态流转的依据。
type Orders struct {
	kv KV
}

func NewOrders(kv KV) *Orders {
	return &Orders{kv: kv}
}

func (o *Orders) Get(ctx context.Context, id uint) (*model.Order, bool, error) {
	var out model.Order
	ok, err := GetJSON(ctx, o.kv, rediskey.OrderKey(id), &out)
	if err != nil || !ok {
		return nil, false, err
	}
	return &out, true, nil
}

func (o *Orders) Set(ctx context.Context, ord *model.Order, ttl time.Duration) error {
	return SetJSON(ctx, o.kv, rediskey.OrderKey(ord.ID), ord, ttl)
}

func (o *Orders) Invalidate(ctx context.Context, id uint) error {
	return o.kv.Delete(ctx, rediskey.OrderKey(id))
}
