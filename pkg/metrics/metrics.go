// Package metrics defines the custom Prometheus collectors for the geodonis
// web service. It is a leaf package so services, adapters and HTTP middleware
// can all record into it. Collectors are registered with the default registry
// on import; HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geodonis"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// TokenRefreshTotal counts refresh-token exchanges.
// Label:
//   - result: "success", "expired", "invalid" or "error"
var TokenRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Total number of refresh-token exchanges, by result.",
	},
	[]string{"result"},
)

// SessionOutcomesTotal counts how the session boundary classified requests.
// Label:
//   - outcome: "authenticated", "missing", "invalid", "expired"
var SessionOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_outcomes_total",
		Help:      "Requests seen by the session boundary, by outcome.",
	},
	[]string{"outcome"},
)

// RateLimitedTotal counts requests rejected by the rate limiter.
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429, by route.",
	},
	[]string{"route"},
)

// ── Account metrics ───────────────────────────────────────────────────────────

// PasswordResetsTotal counts reset-link lifecycle steps.
// Label:
//   - stage: "issued", "completed", "rejected"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Password reset tokens issued, completed and rejected.",
	},
	[]string{"stage"},
)

// AccountEventsQueueDepth tracks pending account events per dispatcher worker.
// Label:
//   - worker_id: numeric worker index
var AccountEventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "account_events_queue_depth",
		Help:      "Current number of account events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AccountEventsPublishedTotal counts publish attempts.
// Label:
//   - result: "published", "failed", "dropped"
var AccountEventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_events_published_total",
		Help:      "Account events handed to the broker, by result.",
	},
	[]string{"result"},
)

// ── Upload metrics ────────────────────────────────────────────────────────────

// UploadsTotal counts upload requests.
// Label:
//   - result: "stored", "rejected", "error"
var UploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Total number of file uploads, by result.",
	},
	[]string{"result"},
)

// StorageOperationDuration measures file storage calls.
// Labels:
//   - backend: "local" or "s3"
//   - op: "exists", "save", "get", "delete", "list"
var StorageOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "storage_operation_duration_seconds",
		Help:      "Duration of file storage operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"backend", "op"},
)
