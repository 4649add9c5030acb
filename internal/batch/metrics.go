package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recipientsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocampaign_recipients_processed_total",
			Help: "Recipients processed by batch runs, by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	costCharged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocampaign_generation_cost_total",
			Help: "Generation cost charged for successful recipients, by tier.",
		},
		[]string{"tier"},
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videocampaign_recipient_processing_seconds",
			Help:    "Wall time to process one recipient, by tier.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90, 180},
		},
		[]string{"tier"},
	)

	activeBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocampaign_active_batches",
			Help: "Batch runs currently in progress in this process.",
		},
	)
)
