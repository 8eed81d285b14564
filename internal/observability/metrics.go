// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Market data metrics
	CacheRequests      *prometheus.CounterVec
	RemoteFetches      *prometheus.CounterVec
	RemoteFetchLatency *prometheus.HistogramVec
	CatalogRefreshes   *prometheus.CounterVec
	CatalogAssets      prometheus.Gauge

	// Slack metrics
	EventsReceived    *prometheus.CounterVec
	TickersResolved   prometheus.Histogram
	MessagesDelivered *prometheus.CounterVec
	OAuthExchanges    *prometheus.CounterVec
	SocketReconnects  prometheus.Counter

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
	StartTime             prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_price_bot"
	}

	return &Metrics{
		CacheRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_requests_total",
			Help:      "Market data cache lookups by key and result (hit, miss)",
		}, []string{"key", "result"}),
		RemoteFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "remote_fetches_total",
			Help:      "Remote market data fetches by key and status",
		}, []string{"key", "status"}),
		RemoteFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "remote_fetch_latency_seconds",
			Help:      "Remote market data fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"key"}),
		CatalogRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "refreshes_total",
			Help:      "Catalog refreshes by status",
		}, []string{"status"}),
		CatalogAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "assets",
			Help:      "Number of assets in the current catalog index",
		}),

		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "events_received_total",
			Help:      "Inbound events by type and response status",
		}, []string{"event_type", "status"}),
		TickersResolved: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "tickers_resolved",
			Help:      "Number of assets resolved per price message",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		MessagesDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "messages_delivered_total",
			Help:      "Outbound chat.postMessage calls by status",
		}, []string{"status"}),
		OAuthExchanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "oauth_exchanges_total",
			Help:      "OAuth code exchanges by status",
		}, []string{"status"}),
		SocketReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slack",
			Name:      "socket_reconnects_total",
			Help:      "Socket Mode reconnect attempts",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful catalog refresh",
		}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of process start",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCacheLookup records a cache hit or miss for key.
func RecordCacheLookup(key string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheRequests.WithLabelValues(key, result).Inc()
}

// RecordRemoteFetch records a remote fetch outcome and its latency.
func RecordRemoteFetch(key, status string, elapsed time.Duration) {
	DefaultMetrics.RemoteFetches.WithLabelValues(key, status).Inc()
	DefaultMetrics.RemoteFetchLatency.WithLabelValues(key).Observe(elapsed.Seconds())
}

// RecordCatalogRefresh records a catalog refresh. assets is ignored on failure.
func RecordCatalogRefresh(err error, assets int) {
	if err != nil {
		DefaultMetrics.CatalogRefreshes.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.CatalogRefreshes.WithLabelValues("ok").Inc()
	DefaultMetrics.CatalogAssets.Set(float64(assets))
	DefaultMetrics.LastSuccessfulRefresh.SetToCurrentTime()
}

// RecordEvent records an inbound event and the status it was answered with.
func RecordEvent(eventType string, status int) {
	if eventType == "" {
		eventType = "none"
	}
	DefaultMetrics.EventsReceived.WithLabelValues(eventType, http.StatusText(status)).Inc()
}

// RecordTickersResolved records how many assets a price message resolved to.
func RecordTickersResolved(n int) {
	DefaultMetrics.TickersResolved.Observe(float64(n))
}

// RecordDelivery records an outbound message post.
func RecordDelivery(err error) {
	DefaultMetrics.MessagesDelivered.WithLabelValues(statusLabel(err)).Inc()
}

// RecordOAuthExchange records an OAuth code exchange.
func RecordOAuthExchange(err error) {
	DefaultMetrics.OAuthExchanges.WithLabelValues(statusLabel(err)).Inc()
}

// RecordSocketReconnect increments the Socket Mode reconnect counter.
func RecordSocketReconnect() {
	DefaultMetrics.SocketReconnects.Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, code int, elapsed time.Duration) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, elapsed time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkStart sets the process start gauge.
func MarkStart() {
	DefaultMetrics.StartTime.SetToCurrentTime()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
