package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EstimatesTotal counts estimation attempts by outcome: ok, order_not_found,
	// empty_order, restaurant_not_found, user_not_found, persistence, error.
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_estimates_total",
			Help: "Delivery estimation attempts by outcome",
		},
		[]string{"outcome"},
	)

	EstimateMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_estimate_minutes",
			Help:    "Delivery estimates handed out, in minutes",
			Buckets: []float64{20, 25, 30, 35, 40, 45, 50, 55, 60},
		},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_cache_requests_total",
			Help: "Restaurant location cache lookups by result",
		},
		[]string{"result"},
	)
)
