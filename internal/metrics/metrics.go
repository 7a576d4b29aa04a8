// Package metrics holds the Prometheus instrumentation for the fan-out engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TriggerInvocations counts handler runs by event kind and result
	// ("sent", "skipped", "invalid", "failed", "unknown").
	TriggerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_trigger_invocations_total",
			Help: "Total number of trigger handler invocations",
		},
		[]string{"kind", "result"},
	)

	// GatewayCalls counts calls by whether the gateway answered ("ok") or the
	// call itself failed ("error"). An answer rejecting a token is still "ok"
	// in both modes; per-recipient results live in Deliveries.
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_gateway_calls_total",
			Help: "Total number of push gateway calls",
		},
		[]string{"mode", "result"}, // mode: "batch", "single"
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_gateway_call_duration_seconds",
			Help:    "Duration of push gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Deliveries counts per-recipient outcomes ("success", "invalid_destination", "transient").
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Total number of per-recipient delivery outcomes",
		},
		[]string{"outcome"},
	)

	TokensRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_tokens_revoked_total",
			Help: "Total number of device tokens cleared after invalid-destination failures",
		},
		[]string{"channel", "result"},
	)

	WelcomeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_welcome_messages_total",
			Help: "Total number of welcome auto-replies written",
		},
		[]string{"result"},
	)

	// CircuitBreakerState: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	DirectoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_directory_cache_lookups_total",
			Help: "Recipient directory cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)
