package personalize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocampaign_personalization_fallbacks_total",
			Help: "Personalization steps that failed and fell back to the lower tier, by failed step tier.",
		},
		[]string{"tier"},
	)

	generationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocampaign_generation_calls_total",
			Help: "Generative text calls made by the personalization engine.",
		},
		[]string{"step", "outcome"},
	)
)
