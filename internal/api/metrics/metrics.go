// Package metrics defines and registers all custom Prometheus metrics for the
// delivery tracking service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// when the package is first imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracking"

// ── Ingestion metrics ─────────────────────────────────────────────────────────

// SamplesReceivedTotal counts ingestion attempts.
// Label:
//   - result: "accepted" or "rejected"
var SamplesReceivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_received_total",
		Help:      "Total number of location samples received by the ingestion gateway.",
	},
	[]string{"result"},
)

// SamplesRejectedTotal counts rejected samples.
// Label:
//   - reason: the stable reject reason (e.g. "bad_accuracy", "kill_switch_off")
var SamplesRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_rejected_total",
		Help:      "Total number of location samples rejected at ingestion, by reason.",
	},
	[]string{"reason"},
)

// DeadLettersTotal counts payloads parked on the dead-letter path.
var DeadLettersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dead_letters_total",
		Help:      "Total number of rejected payloads published to the dead-letter stream.",
	},
	[]string{"reason"},
)

// ── Worker metrics ────────────────────────────────────────────────────────────

// SamplesProcessedTotal counts worker outcomes.
// Label:
//   - outcome: "applied", "deduped", "kill_switch_off" or "dropped"
var SamplesProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_processed_total",
		Help:      "Total number of samples handled by the projection worker, by outcome.",
	},
	[]string{"outcome"},
)

// SampleProcessingDuration measures how long one sample takes from dequeue to commit.
var SampleProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sample_processing_duration_seconds",
		Help:      "Duration of sample processing from dequeue to projection commit.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"outcome"},
)

// DispatcherQueueDepth tracks the number of deliveries waiting in each shard.
// Label:
//   - shard: numeric shard index (e.g. "0", "1", …)
var DispatcherQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatcher_queue_depth",
		Help:      "Current number of samples pending in each dispatcher shard.",
	},
	[]string{"shard"},
)

// OrderContextFailuresTotal counts order lookups that failed or timed out.
var OrderContextFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_context_failures_total",
		Help:      "Total number of order context lookups that failed or timed out.",
	},
)

// CheckpointTransitionsTotal counts customer checkpoint advances.
var CheckpointTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoint_transitions_total",
		Help:      "Total number of customer checkpoint advances, by new checkpoint.",
	},
	[]string{"checkpoint"},
)

// SLARiskEscalationsTotal counts SLA level escalations.
var SLARiskEscalationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sla_risk_escalations_total",
		Help:      "Total number of SLA risk escalations, by new level.",
	},
	[]string{"level"},
)

// ── Read metrics ──────────────────────────────────────────────────────────────

// TrackingReadsTotal counts customer reads.
// Label:
//   - state: "HIDDEN", "OFFLINE" or "AVAILABLE"
var TrackingReadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracking_reads_total",
		Help:      "Total number of customer tracking reads, by returned tracking state.",
	},
	[]string{"state"},
)
