package service

import (
	"context"
	"sync"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// Guard 短时间窗口内的占位锁，Claim 返回 false 表示窗口内已经有人占过
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisGuard 基于 SET NX PX
type RedisGuard struct {
	client radix.Client
}

func NewRedisGuard(client radix.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	var reply string
	mn := radix.MaybeNil{Rcv: &reply}
	if err := g.client.Do(radix.FlatCmd(&mn, "SET", key, "1", "NX", "PX", ttl.Milliseconds())); err != nil {
		return false, err
	}
	return !mn.Nil, nil
}

// MemoryGuard 单进程兜底实现，没有 Redis 时使用
type MemoryGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{expires: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)

	// 顺手清理过期 key
	if len(g.expires) > 1024 {
		for k, exp := range g.expires {
			if !now.Before(exp) {
				delete(g.expires, k)
			}
		}
	}
	return true, nil
}
