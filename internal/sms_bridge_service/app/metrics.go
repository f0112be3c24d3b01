package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboundRecipientsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "outbound_recipients_total",
			Help:      "Recipients handled by the outbound relay, by outcome.",
		},
		[]string{"outcome"}, // sent, no_phone, blank_text, pool_exhausted, failed
	)

	inboundSMSCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "inbound_sms_total",
			Help:      "SMS handled by the inbound relay, by outcome.",
		},
		[]string{"outcome"}, // relayed, no_route, no_conversation, failed
	)

	poolBindingsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "pool_bindings_created_total",
			Help:      "Conversations newly bound to a pool number.",
		},
	)

	jobsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "jobs_total",
			Help:      "Queue deliveries by job type and result.",
		},
		[]string{"job", "result"}, // acked, retried, failed, malformed
	)

	jobDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_bridge",
			Name:      "job_duration_seconds",
			Help:      "Duration of relay job processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	numberCallbacksUpdatedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sms_bridge",
			Name:      "number_callbacks_updated_total",
			Help:      "Pool numbers whose inbound callback URL was repointed.",
		},
	)
)
