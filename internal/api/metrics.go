package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftme",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of gateway requests. Status 0 means transport failure.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "liftme",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Gateway request latencies in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func observeRequest(method, path string, status int, elapsed time.Duration) {
	group := pathGroup(path)
	requestsTotal.WithLabelValues(method, group, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, group).Observe(elapsed.Seconds())
}

// pathGroup keeps the first two non-api segments so order ids and other
// per-request values do not explode label cardinality.
func pathGroup(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 0 && segments[0] == "api" {
		segments = segments[1:]
	}
	if len(segments) > 2 {
		segments = segments[:2]
	}
	return "/" + strings.Join(segments, "/")
}
