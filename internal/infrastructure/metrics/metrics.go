package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisions tracks principal resolution and authorization outcomes
	AuthDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxauth_auth_decisions_total",
		Help: "Total number of authentication and authorization decisions",
	}, []string{"kind", "outcome"})

	// KeyVerifications tracks API key verification results
	KeyVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxauth_key_verifications_total",
		Help: "Total number of API key verification attempts",
	}, []string{"result"})

	// CacheOperations tracks session cache hits and misses
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxauth_cache_operations_total",
		Help: "Total number of session cache hits and misses",
	}, []string{"result"})

	// DBConnectionsActive tracks open database connections
	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sandboxauth_db_connections_active",
		Help: "Number of active database connections",
	})

	// HTTPRequests tracks management API traffic
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sandboxauth_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "status"})
)
