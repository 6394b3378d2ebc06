// Package metrics provides Prometheus metrics and a metrics HTTP server for repogate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "grpc"
	metricsSubsystem = "server"

	domainNamespace = "repogate"
)

// gRPC server metrics.
var (
	// ServerStartedTotal counts the total number of RPCs started on the server.
	ServerStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "started_total",
			Help:      "Total number of RPCs started on the server.",
		},
		[]string{"grpc_type", "grpc_service", "grpc_method"},
	)

	// ServerHandledTotal counts the total number of RPCs completed on the server, regardless of success or failure.
	ServerHandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "handled_total",
			Help:      "Total number of RPCs completed on the server, regardless of success or failure.",
		},
		[]string{"grpc_type", "grpc_service", "grpc_method", "grpc_code"},
	)

	// ServerHandlingSeconds is a histogram of response latency (seconds) of gRPC that had been
	// application-level handled by the server.
	ServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "handling_seconds",
			Help:      "Histogram of response latency (seconds) of gRPC handled by the server.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"grpc_type", "grpc_service", "grpc_method"},
	)
)

// Authentication metrics.
var (
	// AuthAttemptsTotal counts dispatched logins by credential kind and result.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total number of authentication attempts.",
		},
		[]string{"auth_type", "result"},
	)

	// AuthLogoutsTotal counts dispatched logouts by credential kind and result.
	AuthLogoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Total number of logouts.",
		},
		[]string{"auth_type", "result"},
	)

	// RegistryInstancesCreatedTotal counts authenticator instances built by the registry.
	RegistryInstancesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "registry",
			Name:      "instances_created_total",
			Help:      "Total number of authenticator instances created.",
		},
		[]string{"auth_type"},
	)

	// RegistryContexts is the number of execution contexts holding authenticator instances.
	RegistryContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: domainNamespace,
			Subsystem: "registry",
			Name:      "contexts",
			Help:      "Number of execution contexts with cached authenticators.",
		},
	)
)

// Session metrics.
var (
	// SessionConnectsTotal counts physical connections opened, by result.
	SessionConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Total number of physical repository connections attempted.",
		},
		[]string{"result"},
	)

	// SessionDisconnectsTotal counts physical connections closed.
	SessionDisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "session",
			Name:      "disconnects_total",
			Help:      "Total number of physical repository connections closed.",
		},
	)

	// SessionReentrantOpensTotal counts opens served by an existing handle.
	SessionReentrantOpensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: domainNamespace,
			Subsystem: "session",
			Name:      "reentrant_opens_total",
			Help:      "Total number of opens that reused the handle of the execution context.",
		},
	)

	// SessionOpenHandles is the number of live connection handles.
	SessionOpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: domainNamespace,
			Subsystem: "session",
			Name:      "open_handles",
			Help:      "Number of live connection handles.",
		},
	)
)
