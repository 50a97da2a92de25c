package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/auth"
	"github.com/suPer8Hu/chat-ai/internal/common"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// AuthRequired admits requests with a valid Bearer token. A missing token is 401,
// an invalid or expired one 403.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			common.Fail(c, http.StatusUnauthorized, "unauthenticated")
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			common.Fail(c, http.StatusForbidden, "invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}
