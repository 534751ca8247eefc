package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookie carries the opaque identity token issued by the external
// session service.
const SessionCookie = "hr_session"

// UserIDKey is where the authenticated user id lives in the gin context.
const UserIDKey = "userID"

// TokenValidator verifies an identity token against the session service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// Auth is the single authentication gate: it validates the session cookie
// once per request and passes the resolved identity downstream explicitly.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity token"})
			return
		}

		userID, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
