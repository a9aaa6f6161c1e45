package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedImports counts feed imports by outcome.
	FeedImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_feed_imports_total",
		Help: "Feed imports by outcome",
	}, []string{"outcome"})

	// FeedLinesSkipped counts feed lines dropped at import by reason.
	FeedLinesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_feed_lines_skipped_total",
		Help: "Feed lines skipped during import",
	}, []string{"reason"})

	// PostsLoaded is the size of the current post store.
	PostsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hivecache_posts_loaded",
		Help: "Number of posts in the current post store",
	})

	// RiskEvaluations counts risk-engine evaluations by resulting tier.
	RiskEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_risk_evaluations_total",
		Help: "Risk evaluations by tier",
	}, []string{"tier"})

	// RiskCacheLookups counts risk cache hits and misses.
	RiskCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_risk_cache_lookups_total",
		Help: "Risk cache lookups by result",
	}, []string{"result"})

	// ScanRuns counts scanner sweeps by scanner and outcome.
	ScanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_scan_runs_total",
		Help: "Scanner sweeps by scanner and outcome",
	}, []string{"scanner", "outcome"})

	// ScanMatches counts posts matched by each scanner.
	ScanMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_scan_matches_total",
		Help: "Posts matched by scanner",
	}, []string{"scanner"})

	// ScanDuration records sweep duration.
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hivecache_scan_duration_seconds",
		Help:    "Scanner sweep duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"scanner"})

	// StoreWrites records persisted key-value writes by key and backend.
	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_store_writes_total",
		Help: "Persisted state writes by key and backend",
	}, []string{"key", "backend"})

	// StoreLatency records key-value store latency.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hivecache_store_latency_seconds",
		Help:    "Persisted state operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "backend"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// NotificationsQueued counts notifications by level.
	NotificationsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivecache_notifications_total",
		Help: "Notifications queued by level",
	}, []string{"level"})

	// WebSocketConnections is the gauge of connected alert dashboards.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hivecache_websocket_connections",
		Help: "Number of active alert WebSocket connections",
	})

	// WebSocketDrops counts alerts dropped because a client was too slow.
	WebSocketDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hivecache_websocket_drops_total",
		Help: "Alerts dropped due to WebSocket backpressure",
	})
)

// TrackStore returns a function that records store latency when called (e.g. defer).
func TrackStore(operation, backend string) func() {
	start := time.Now()
	return func() {
		StoreLatency.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
	}
}

// TrackScan returns a function that records sweep duration when called.
func TrackScan(scanner string) func() {
	start := time.Now()
	return func() {
		ScanDuration.WithLabelValues(scanner).Observe(time.Since(start).Seconds())
	}
}
