package middleware

import (
	"sync"
	"time"

	"github.com/kataras/iris/v12"
)

// ClientIDHeader 购物车客户端标识，限流和防重复提交都按它区分
const ClientIDHeader = "X-Client-ID"

// TokenBucket 令牌桶限流器
type TokenBucket struct {
	capacity   float64   // 桶容量
	tokens     float64   // 当前令牌数
	refillRate float64   // 每秒补充的令牌数
	lastRefill time.Time // 上次补充时间
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity int64, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// KeyedLimiter 每个客户端一个令牌桶
type KeyedLimiter struct {
	capacity int64
	rate     float64
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastSweep time.Time
}

func NewKeyedLimiter(capacity int64, rate float64) *KeyedLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	return &KeyedLimiter{
		capacity:  capacity,
		rate:      rate,
		idleTTL:   10 * time.Minute,
		now:       time.Now,
		buckets:   make(map[string]*TokenBucket),
		lastSweep: time.Now(),
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = NewTokenBucket(l.capacity, l.rate, now)
		l.buckets[key] = b
	}
	if now.Sub(l.lastSweep) > l.idleTTL {
		l.sweep(now)
	}
	l.mu.Unlock()
	return b.Allow(now)
}

// sweep 清掉长时间没有请求的桶，调用方持有 l.mu
func (l *KeyedLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.idleSince()) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

// Len 当前跟踪的客户端数量
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ClientKey 优先用客户端标识，没有时退回来源 IP
func ClientKey(ctx iris.Context) string {
	if id := ctx.GetHeader(ClientIDHeader); id != "" {
		return "client:" + id
	}
	return "ip:" + ctx.RemoteAddr()
}

// RateLimitMiddleware 限流中间件
func RateLimitMiddleware(l *KeyedLimiter) iris.Handler {
	return func(ctx iris.Context) {
		if !l.Allow(ClientKey(ctx)) {
			ctx.StopWithJSON(iris.StatusTooManyRequests, iris.Map{
				"code": iris.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后再试",
			})
			return
		}
		ctx.Next()
	}
}
