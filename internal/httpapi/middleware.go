package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/logger"
)

// UserHeader carries the caller's identity.
const UserHeader = "X-User-ID"

const userKey = "user_id"

// IdentifyUser stores the caller's user id, defaulting to
// learning.DefaultUserID when the header is absent.
func IdentifyUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(UserHeader))
		if id == "" {
			id = learning.DefaultUserID
		}
		c.Set(userKey, id)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	if id := c.GetString(userKey); id != "" {
		return id
	}
	return learning.DefaultUserID
}

// RequestLogger logs one line per request, at a level that follows the
// response status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"user_id", userID(c),
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
