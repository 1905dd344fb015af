package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-summarizer/internal/logging"
	"go-summarizer/internal/metrics"
	"go-summarizer/internal/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags every request with an ID (the caller's, or a new
// UUID) and puts it on the request context for logging.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLogMiddleware(log *slog.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// rateLimitMiddleware returns a builder so each route can choose how a
// rejection is rendered. Limiter errors are logged and the request allowed.
func rateLimitMiddleware(limiter ratelimit.Limiter, m *metrics.Metrics, log *slog.Logger) func(deny gin.HandlerFunc) gin.HandlerFunc {
	log = log.With("component", "ratelimit")
	return func(deny gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
			if err != nil {
				log.WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err)
			}
			if !ok {
				m.ObserveRateLimited()
				deny(c)
				c.Abort()
				return
			}
			c.Next()
		}
	}
}
