package middleware

import (
	"github.com/gin-gonic/gin"

	"partscatalog/internal/core/apperror"
	"partscatalog/internal/core/security"
)

// RequireFeature hides a route group behind a feature flag. Disabled
// features answer 404.
func RequireFeature(flags security.FeatureFlagProvider, flag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if flags == nil || !flags.IsEnabled(c.Request.Context(), flag) {
			_ = c.Error(apperror.NewFeatureDisabled(flag))
			c.Abort()
			return
		}
		c.Next()
	}
}
