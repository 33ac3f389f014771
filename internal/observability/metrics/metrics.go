package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_auth_attempts_total",
		Help: "Authentication attempts by principal kind and result",
	}, []string{"kind", "result"})

	authDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_auth_duration_seconds",
		Help:    "Duration of authentication attempts including password verification",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	authzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_authz_decisions_total",
		Help: "Authorization decisions by role, capability and outcome",
	}, []string{"role", "capability", "decision"})

	tenantSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_tenant_switches_total",
		Help: "Effective tenant changes requested by the super administrator",
	}, []string{"result"})

	userMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_user_mutations_total",
		Help: "Credential and account mutations by operation and result",
	}, []string{"operation", "result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspace_active_sessions",
		Help: "Number of live sessions held by the in-process session store",
	})

	sessionCleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_session_cleanup_total",
		Help: "Expired sessions removed by the cleanup worker",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAuthentication records one login attempt. kind is "super_admin",
// "tenant" or "unresolved"; result is "success" or the internal failure reason.
func ObserveAuthentication(kind, result string, duration time.Duration) {
	authAttempts.WithLabelValues(kind, result).Inc()
	authDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveAuthorization records a capability decision.
func ObserveAuthorization(role, capability string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authzDecisions.WithLabelValues(role, capability, decision).Inc()
}

func ObserveTenantSwitch(result string) {
	tenantSwitches.WithLabelValues(result).Inc()
}

// ObserveUserMutation counts create/activate/deactivate/reset operations.
func ObserveUserMutation(operation, result string) {
	userMutations.WithLabelValues(operation, result).Inc()
}

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func ObserveSessionCleanup(result string, count int) {
	sessionCleanups.WithLabelValues(result).Add(float64(count))
}
