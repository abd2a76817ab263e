// Package metrics provides Prometheus instrumentation for chatsync. The
// client side counts API calls, poll ticks and token refreshes; the reference
// backend counts requests per route and messages sent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts client API calls by operation and status code
	// ("0" when the request never got a response).
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_api_requests_total",
		Help: "Total number of API requests issued by the chat client",
	}, []string{"operation", "code"})

	// APIRequestDuration records client API latency in seconds.
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatsync_api_request_duration_seconds",
		Help:    "API request latency in seconds",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	// PollTicksTotal counts poll callback runs by resource.
	PollTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_poll_ticks_total",
		Help: "Total number of poll callback invocations",
	}, []string{"resource"})

	// PollSkippedTotal counts ticks dropped because the previous run was still in flight.
	PollSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_poll_skipped_total",
		Help: "Total number of poll ticks skipped while a previous run was in flight",
	}, []string{"resource"})

	// PollErrorsTotal counts swallowed background poll failures.
	PollErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_poll_errors_total",
		Help: "Total number of failed background polls",
	}, []string{"resource"})

	// PollStaleTotal counts responses discarded because a newer one was already applied.
	PollStaleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_poll_stale_total",
		Help: "Total number of out-of-order poll responses discarded",
	}, []string{"resource"})

	// TokenRefreshesTotal counts refresh round-trips by result: success, failure or timeout.
	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_token_refreshes_total",
		Help: "Total number of access token refresh attempts",
	}, []string{"result"})

	// UnreadBadge is the current aggregate unread badge.
	UnreadBadge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_unread_badge",
		Help: "Aggregate unread message count shown in the navigation badge",
	})

	// ServerRequestsTotal counts reference backend requests by route template and status.
	ServerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_server_requests_total",
		Help: "Total number of HTTP requests handled by the reference backend",
	}, []string{"route", "method", "code"})

	// ServerMessagesTotal counts messages stored by the reference backend.
	ServerMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_server_messages_total",
		Help: "Total number of chat messages stored",
	})
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		PollTicksTotal,
		PollSkippedTotal,
		PollErrorsTotal,
		PollStaleTotal,
		TokenRefreshesTotal,
		UnreadBadge,
		ServerRequestsTotal,
		ServerMessagesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
