package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-summarizer/internal/config"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"upstream": gin.H{
				"url":             cfg.Upstream.URL,
				"model":           cfg.Upstream.Model,
				"api":             cfg.Upstream.API,
				"timeout_seconds": cfg.Upstream.TimeoutSeconds,
			},
			"rate_limit_per_minute": cfg.RateLimit.PerMinute,
		})
	}
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}
