/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the proxy.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RouteOperationsTotal counts operations entering the route tree.
	RouteOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_route_operations_total",
		Help: "Cache operations dispatched through the route tree.",
	}, []string{"op", "result"})

	// MigrateDualDispatchTotal counts operations the migrate strategy
	// sent to both destinations.
	MigrateDualDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_migrate_dual_dispatch_total",
		Help: "Operations dual-dispatched to both migration destinations.",
	}, []string{"op"})

	// MigrateReconcileTotal counts which migration slot supplied the
	// reconciled reply.
	MigrateReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_migrate_reconcile_total",
		Help: "Reconciled dual-dispatch replies by winning slot.",
	}, []string{"slot"})

	// BackendOperationsTotal counts operations executed against backends.
	BackendOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_backend_operations_total",
		Help: "Operations executed against cache backends.",
	}, []string{"backend", "op", "result"})

	// RouteReloadsTotal counts route config reload attempts.
	RouteReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_route_reloads_total",
		Help: "Route configuration reload attempts.",
	}, []string{"status"})

	// APIRequestsTotal counts HTTP requests handled by the proxy API.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratatosk_api_requests_total",
		Help: "HTTP requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ratatosk_api_request_duration_seconds",
		Help:    "HTTP request duration by method, endpoint and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratatosk_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
