package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gramvault/gramvault/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.HTTPInFlight.Inc()
		c.Next()
		metrics.HTTPInFlight.Dec()

		metrics.HTTPLatency.WithLabelValues(c.FullPath()).Observe(time.Since(start).Seconds())
	}
}
