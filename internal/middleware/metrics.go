package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics observes request latency per route template. Websocket upgrades live for the
// whole session, so they are counted as open streams instead.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		if c.IsWebsocket() {
			sessions := metrics.StreamSessions.WithLabelValues(route)
			sessions.Inc()
			defer sessions.Dec()
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
