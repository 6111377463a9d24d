package middleware

import (
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/auth"
	"github.com/example/bundleshop/internal/config"
)

// ActorKey 鉴权通过后写入 ctx.Values 的操作人
const ActorKey = "actor"

// RequireAdmin 校验 Authorization 头里的后台 JWT，cache 可以为 nil
func RequireAdmin(cfg *config.JWTConfig, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(iris.StatusUnauthorized, iris.Map{"code": iris.StatusUnauthorized, "msg": "missing token"})
			return
		}

		reqCtx := ctx.Request().Context()
		claims, hit, err := cache.Get(reqCtx, token)
		if err != nil {
			zap.L().Warn("token cache get failed", zap.Error(err))
		}
		if !hit {
			claims, err = auth.ParseToken(cfg, token)
			if err != nil {
				ctx.StopWithJSON(iris.StatusUnauthorized, iris.Map{"code": iris.StatusUnauthorized, "msg": "invalid token"})
				return
			}
			if err := cache.Set(reqCtx, token, claims); err != nil {
				zap.L().Warn("token cache set failed", zap.Error(err))
			}
		}
		if claims.Role != auth.RoleAdmin {
			ctx.StopWithJSON(iris.StatusForbidden, iris.Map{"code": iris.StatusForbidden, "msg": "admin role required"})
			return
		}

		ctx.Values().Set(ActorKey, claims.Actor)
		ctx.Next()
	}
}
