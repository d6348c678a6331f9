package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Total submissions fully ingested, by final sentiment
	FeedbackIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_ingested_total",
		Help: "Total feedback submissions persisted",
	}, []string{"sentiment"})

	// Rejections by pipeline reason (rate limit, duration, empty transcript, ...)
	FeedbackRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_rejected_total",
		Help: "Total feedback submissions rejected",
	}, []string{"reason"})

	// Latency of the whole ingestion pipeline
	IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedback_ingest_duration_seconds",
		Help:    "Latency of the feedback ingestion pipeline",
		Buckets: prometheus.DefBuckets,
	})

	// Alert messages delivered to chats
	AlertsDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_alerts_delivered_total",
		Help: "Telegram alert messages delivered",
	})

	// Sentiment backend failures that triggered a fallback
	SentimentFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentiment_backend_failures_total",
		Help: "Sentiment backend failures causing fallback to the next backend",
	}, []string{"backend"})
)

func Init() {
	prometheus.MustRegister(
		FeedbackIngestedTotal,
		FeedbackRejectedTotal,
		IngestDuration,
		AlertsDeliveredTotal,
		SentimentFallbackTotal,
	)
}
