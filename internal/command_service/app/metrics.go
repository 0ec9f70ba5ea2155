package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "command_processor",
			Name:      "inbound_messages_received_total",
			Help:      "Total number of inbound messages consumed from the broker.",
		},
		[]string{"subject_pattern"},
	)

	routingDecisionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "command_processor",
			Name:      "routing_decisions_total",
			Help:      "Total routing decisions by target.",
		},
		[]string{"target"}, // DEV or PROD
	)

	commandProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "command_processor",
			Name:      "commands_processed_total",
			Help:      "Total processed inbound messages by result.",
		},
		// result: success, replay, reject_in_progress, parse_error,
		// auth_error, execution_error, coordinator_error, dev_forwarded,
		// dropped_no_address
		[]string{"result"},
	)

	commandProcessingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "command_processor",
			Name:      "command_processing_duration_seconds",
			Help:      "Duration of inbound message processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	dedupDecisionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "command_processor",
			Name:      "dedup_decisions_total",
			Help:      "Idempotency coordinator decisions by kind.",
		},
		[]string{"decision"},
	)

	deliveryStatusCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "command_processor",
			Name:      "delivery_status_updates_total",
			Help:      "Delivery status updates applied to the reply outbox.",
		},
		[]string{"status"},
	)
)
