package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/modu-mall/account-api/pkg/helpers"
	"github.com/modu-mall/account-api/pkg/response"
)

// Context keys set by Auth.
const (
	CtxUserIDKey  = "userID"
	CtxIsAdminKey = "isAdmin"
)

// tokenFromRequest reads the bearer token from the Authorization header,
// falling back to the access_token cookie set for browser clients.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
	}
	if tok, err := c.Cookie("access_token"); err == nil {
		return tok
	}
	return ""
}

// Auth validates the access token and, when Redis is configured, ensures an
// active session exists for its subject. It sets userID and isAdmin in the
// Gin context on success.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token", err.Error())
			return
		}

		if rdb != nil {
			key := "user:session:" + claims.UserID
			data, err := rdb.HGetAll(c.Request.Context(), key).Result()
			if err != nil || len(data) == 0 {
				response.AbortError(c, http.StatusUnauthorized, "session not found", nil)
				return
			}
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxIsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin flag.
// It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxIsAdminKey) {
			response.AbortError(c, http.StatusForbidden, "admin privileges required", nil)
			return
		}
		c.Next()
	}
}
