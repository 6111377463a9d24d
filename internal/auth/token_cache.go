package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// TokenCache 缓存 JWT 解析结果，后台请求不用每次验签
type TokenCache struct {
	redis radix.Client
	ttl   time.Duration
}

// NewTokenCache redis 为 nil 时缓存关闭
func NewTokenCache(redis radix.Client, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenCache{redis: redis, ttl: ttl}
}

func cacheKey(token string) string {
	sum := sha1.Sum([]byte(token))
	return fmt.Sprintf("auth:admin:%s", hex.EncodeToString(sum[:]))
}

// Get 尝试命中缓存的 claims，已过期的当作未命中
func (c *TokenCache) Get(ctx context.Context, token string) (*Claims, bool, error) {
	if c == nil || c.redis == nil {
		return nil, false, nil
	}
	key := cacheKey(token)
	var raw []byte
	mn := radix.MaybeNil{Rcv: &raw}
	if err := c.redis.Do(radix.Cmd(&mn, "GET", key)); err != nil {
		return nil, false, err
	}
	if mn.Nil || len(raw) == 0 {
		return nil, false, nil
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		// 数据损坏，清理后走正常解析
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return nil, false, nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
		return nil, false, nil
	}
	return &claims, true, nil
}

// Set 缓存解析结果，过期时间不超过 token 本身
func (c *TokenCache) Set(ctx context.Context, token string, claims *Claims) error {
	if c == nil || c.redis == nil || claims == nil {
		return nil
	}
	ttl := c.ttl
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left < ttl {
			ttl = left
		}
	}
	if ttl < time.Second {
		return nil
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return c.redis.Do(radix.FlatCmd(nil, "SETEX", cacheKey(token), int64(ttl/time.Second), body))
}
