package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reply sources recorded on ChatTurns.
const (
	SourceCompletion = "completion"
	SourceFallback   = "fallback"
)

var (
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollenpilot_chat_turns_total",
			Help: "Chat turns persisted, by flow and reply source",
		},
		[]string{"flow", "source"},
	)

	ChatTurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollenpilot_chat_turns_failed_total",
			Help: "Chat turns that failed, by error code",
		},
		[]string{"code"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollenpilot_completion_duration_seconds",
			Help:    "Latency of completion service calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	Ratings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollenpilot_ratings_total",
			Help: "Response ratings recorded",
		},
		[]string{"rating"},
	)
)
