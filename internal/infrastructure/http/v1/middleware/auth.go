package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "partscatalog/internal/core/context"
	"partscatalog/pkg/logger"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// OptionalAuth identifies the caller when a valid bearer token is present.
// Missing or invalid tokens leave the request anonymous; nothing is rejected.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || validator == nil {
			c.Next()
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil || user == nil {
			logger.Debug(c.Request.Context(), "ignoring invalid bearer token", "error", err)
			c.Next()
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)
		c.Set(userIDKey, user.UserID)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
