package server

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/green-credit-copilot/server/pkg/logger"
)

const ownerKey = "owner_id"

// ownerID resolves the caller identity from the X-User-ID header.
// Authentication proper sits in front of this service; an absent header maps
// to a shared anonymous owner so local runs work out of the box.
func ownerID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			id = "anonymous"
		}
		c.Set(ownerKey, id)
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// requestLogger logs one line per request through the shared zerolog setup.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logx.Info()
		if c.Writer.Status() >= 500 {
			ev = logx.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
