package middleware

import (
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"

	"github.com/gin-gonic/gin"
)

// DeviceAuthMiddleware gates the stream surface behind issued device keys.
func DeviceAuthMiddleware(repo repository.DeviceRepository, bypass bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bypass {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-OPS-Key")
		region := c.Query("region")

		if apiKey == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing API key"})
			return
		}

		ok, err := repo.ValidateAPIKey(c.Request.Context(), apiKey, region)
		if err != nil || !ok {
			c.AbortWithStatusJSON(403, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
