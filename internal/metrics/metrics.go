// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xtreamer"

var (
	// PanelCallsTotal counts panel calls by action and outcome.
	PanelCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "panel_calls_total",
		Help:      "Total panel API calls by action and outcome",
	}, []string{"action", "outcome"})

	// PanelCallDuration tracks the HTTP round trip of panel calls, excluding
	// time spent waiting on the throttle.
	PanelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "panel_call_duration_seconds",
		Help:      "Panel API round trip time",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
	}, []string{"action"})

	// ThrottleWait tracks how long callers were held by the request throttle.
	ThrottleWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "throttle_wait_seconds",
		Help:      "Time callers spent waiting for a panel call slot",
		Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// StreamURLCacheClears counts wholesale clears of the stream URL cache.
	StreamURLCacheClears = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_url_cache_clears_total",
		Help:      "Times the stream URL cache exceeded its bound and was cleared",
	})

	// FavoritesMutations counts favorites changes by operation and result.
	FavoritesMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "favorites_mutations_total",
		Help:      "Favorites add/remove/toggle operations",
	}, []string{"op", "result"})

	// HTTPRequestsTotal counts bridge requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP bridge requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks bridge request latency. Event streams are
	// observed when the client disconnects.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP bridge request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// PanelRecorder feeds panel call observations into the collectors above.
type PanelRecorder struct{}

// ObservePanelCall implements xtream.Recorder.
func (PanelRecorder) ObservePanelCall(action, outcome string, duration time.Duration) {
	PanelCallsTotal.WithLabelValues(action, outcome).Inc()
	if duration > 0 {
		PanelCallDuration.WithLabelValues(action).Observe(duration.Seconds())
	}
}

// ObserveThrottleWait records time spent in the throttle.
func ObserveThrottleWait(d time.Duration) {
	ThrottleWait.Observe(d.Seconds())
}
