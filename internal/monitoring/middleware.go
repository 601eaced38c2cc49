package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		metrics.RequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	}
}

// Timer measures operation duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	app     string
}

// NewTimer creates a new timer for a mount operation
func NewTimer(metrics *Metrics, app string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		app:     app,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	t.metrics.RecordMount(t.app, status, time.Since(t.start))
}
