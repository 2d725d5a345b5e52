// Package middleware provides HTTP middleware for the parts catalog API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/security"
)

// Keys set on the gin context.
const (
	userIDKey    = "user_id"
	requestIDKey = "request_id"
	traceIDKey   = "trace_id"
)

// UserContext copies the identified caller into the request context, where
// the domain layer reads it with security.GetUserID.
//
// Must run after OptionalAuth.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetString(userIDKey); uid != "" {
			ctx := security.WithUserID(c.Request.Context(), uid)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
