package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clicksRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_sentinel_clicks_recorded_total",
			Help: "Clicks appended to the click log",
		},
	)

	// Outcome of every block attempt: no_action, already_blocked, blocked, block_failed
	blockOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_sentinel_block_outcomes_total",
			Help: "Block attempts partitioned by outcome",
		},
		[]string{"outcome"},
	)

	confirmFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_sentinel_confirm_faults_total",
			Help: "Blocks accepted upstream whose local confirmation failed",
		},
	)

	discardFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_sentinel_discard_faults_total",
			Help: "Reservations that could not be discarded after an upstream failure",
		},
	)

	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "click_sentinel_upstream_block_duration_seconds",
			Help:    "Latency of upstream block calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	evaluationsCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_sentinel_evaluations_coalesced_total",
			Help: "Clicks folded into an evaluation already queued for the same source",
		},
	)

	evaluationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "click_sentinel_evaluations_inflight",
			Help: "Background click evaluations currently running",
		},
	)
)
