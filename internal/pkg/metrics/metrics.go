// Package metrics defines every custom Prometheus metric of lms-web. Metrics
// register with the default registry on package init through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lms_web"

// ── Gateway metrics ───────────────────────────────────────────────────────────

// UpstreamRequestsTotal counts calls to the LMS API.
// Labels:
//   - method: HTTP method
//   - outcome: "ok", "validation", "unauthorized", "forbidden", "not_found", "failed"
var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of requests sent to the LMS API, by outcome.",
	},
	[]string{"method", "outcome"},
)

// UpstreamRequestDuration measures LMS API round trips.
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests to the LMS API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// SessionRecoveriesTotal counts how 401 responses were resolved.
// Label:
//   - result: "rotated", "invalidated" or "stale"
var SessionRecoveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_recoveries_total",
		Help:      "Total number of unauthorized responses handled, by result.",
	},
	[]string{"result"},
)

// ── Workspace metrics ─────────────────────────────────────────────────────────

// WorkspacesActive is the number of browser workspaces held in memory.
var WorkspacesActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workspaces_active",
		Help:      "Number of browser workspaces currently held in memory.",
	},
)

// SessionTransitionsTotal counts session store transitions.
// Label:
//   - event: "logged_in", "restored", "reloaded", "rotated", "logged_out", "invalidated"
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session transitions, by event.",
	},
	[]string{"event"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsShownTotal counts notifications by kind.
var NotificationsShownTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_shown_total",
		Help:      "Total number of notifications shown, by kind.",
	},
	[]string{"kind"},
)

// DeliveryQueueDepth tracks pending events in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var DeliveryQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "delivery_queue_depth",
		Help:      "Current number of notification events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// StreamConnections is the number of open notification websockets.
var StreamConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_connections",
		Help:      "Number of open notification stream connections.",
	},
)
