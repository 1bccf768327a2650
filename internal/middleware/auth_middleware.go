package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/storage"

	"gorm.io/gorm"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID的键。
const UserIDKey contextKey = "userID"

// ClaimsKey 是用于在上下文中存储完整 JWT Claims 的键。
const ClaimsKey contextKey = "claims"

// AuthMiddleware 返回一个 HTTP 中间件：从 Cookie 或 Bearer 头提取会话令牌，
// 验证签名、有效期与黑名单，并确认用户仍然存在，然后把用户信息写入上下文。
// 任何一步失败都会以 401 拒绝请求。
func AuthMiddleware(authCfg config.AuthConfig, blacklist auth.TokenBlacklist, userRepo storage.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r, authCfg.CookieName)
			if tokenString == "" {
				writeUnauthorized(w, "请求未包含授权令牌")
				return
			}

			claims, err := auth.ValidateToken(r.Context(), tokenString, authCfg.JWTSecretKey, blacklist)
			if err != nil {
				writeUnauthorized(w, "令牌无效")
				return
			}

			// 会话指向的用户必须仍然存在
			if _, err := userRepo.GetByID(r.Context(), claims.UserID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					writeUnauthorized(w, "令牌对应的用户不存在")
				} else {
					writeUnauthorized(w, "无法验证用户")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken 优先从 http-only Cookie 中取令牌，其次是 Authorization: Bearer 头。
func extractToken(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return ""
	}
	return headerParts[1]
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回0和false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetClaimsFromContext 从上下文中获取完整的 JWT Claims。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
