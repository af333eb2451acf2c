package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by API area, route and status",
		},
		[]string{"method", "area", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency in seconds",
			// Checkout runs a transaction plus the delivery estimate, so the
			// upper buckets stretch past the defaults.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "area", "endpoint"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)
)

// apiAreas maps the first segment under /api to the part of the app it serves.
var apiAreas = map[string]string{
	"auth":        "auth",
	"session":     "session",
	"profile":     "customer",
	"cart":        "customer",
	"orders":      "customer",
	"ws":          "customer",
	"restaurants": "catalog",
	"categories":  "catalog",
	"restaurant":  "restaurant",
	"courier":     "courier",
	"admin":       "admin",
}

// RouteArea groups a route template for dashboards: auth, session, customer,
// catalog, restaurant, courier, admin, system or unmatched.
func RouteArea(route string) string {
	if route == "" {
		return "unmatched"
	}
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return "system"
	}
	first, _, _ := strings.Cut(rest, "/")
	if area, ok := apiAreas[first]; ok {
		return area
	}
	return "unmatched"
}

// PrometheusMiddleware records request count, latency and concurrency.
// Endpoints are labelled by route template to keep cardinality bounded;
// requests that match no route share the "unknown" endpoint.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		endpoint := c.FullPath()
		area := RouteArea(endpoint)
		if endpoint == "" {
			endpoint = "unknown"
		}

		status := strconv.Itoa(c.Writer.Status())
		RequestsTotal.WithLabelValues(c.Request.Method, area, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, area, endpoint).Observe(duration)
	}
}
