package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablegroups"

var (
	GroupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Grouped table requests by outcome.",
		},
		[]string{"status"},
	)
	GroupRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_ms",
			Help:      "Grouped table request duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)
	StoreQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_queries_total",
			Help:      "Store round trips by stage and status.",
		},
		[]string{"stage", "status"},
	)
	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_ms",
			Help:      "Store round trip duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"stage"},
	)
	GroupsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "groups_returned",
			Help:      "Number of groups per response.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		},
	)
)

func init() {
	prometheus.MustRegister(
		GroupRequestsTotal,
		GroupRequestDuration,
		StoreQueries,
		StoreQueryDuration,
		GroupsReturned,
	)
}

// ObserveRequest records one grouped table request.
func ObserveRequest(status string, started time.Time) {
	GroupRequestsTotal.WithLabelValues(status).Inc()
	GroupRequestDuration.WithLabelValues(status).Observe(float64(time.Since(started).Milliseconds()))
}

// ObserveStore records one store round trip for a stage.
func ObserveStore(stage string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreQueries.WithLabelValues(stage, status).Inc()
	StoreQueryDuration.WithLabelValues(stage).Observe(float64(time.Since(started).Milliseconds()))
}
