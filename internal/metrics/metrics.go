// Package metrics holds the Prometheus collectors of the task service.
//
// Collectors register on the default registry at package init and are
// exposed through /metrics. All operations are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskd"

// Outcome labels for Rollovers.
const (
	RolloverAdvanced  = "advanced"
	RolloverExhausted = "exhausted"
	RolloverFailed    = "failed"
)

var (
	// Rollovers counts recurring-task completions by outcome.
	Rollovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recurrence",
		Name:      "rollovers_total",
		Help:      "Recurring task completions by outcome (advanced, exhausted, failed).",
	}, []string{"outcome"})

	ArchivesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recurrence",
		Name:      "archives_created_total",
		Help:      "Completed occurrences archived as standalone tasks.",
	})

	// ChangesTracked counts change-log appends by change type.
	ChangesTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "changes_tracked_total",
		Help:      "Change log entries appended, by change type.",
	}, []string{"change_type"})

	TrackingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "tracking_failures_total",
		Help:      "Change log appends that failed after the task mutation committed.",
	})

	// Pushes counts entries sent to an external provider by result.
	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "pushes_total",
		Help:      "Change log entries pushed to external providers, by result.",
	}, []string{"source", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Middleware observes RequestDuration for every routed request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(route, c.Request.Method, statusClass(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
