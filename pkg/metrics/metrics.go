// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionsTotal tracks real-time detection runs by outcome
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "detector",
			Name:      "detections_total",
			Help:      "Total number of real-time detection runs by outcome",
		},
		[]string{"outcome"},
	)

	// DetectionDuration tracks real-time detection duration in seconds
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "detector",
			Name:      "duration_seconds",
			Help:      "Duration of real-time detection runs in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesCreatedTotal tracks created duplicate candidates by source
	CandidatesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "candidates",
			Name:      "created_total",
			Help:      "Total number of duplicate candidates created by source",
		},
		[]string{"source"},
	)

	// MergesTotal tracks executed merges by mode
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merges",
			Name:      "total",
			Help:      "Total number of executed merges by mode",
		},
		[]string{"mode"},
	)

	// ScanBatchesTotal tracks processed scan batches by status
	ScanBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scanner",
			Name:      "batches_total",
			Help:      "Total number of processed scan batches by status",
		},
		[]string{"status"},
	)

	// ScanDuration tracks full scan run duration in seconds
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "scanner",
			Name:      "run_duration_seconds",
			Help:      "Duration of full scan runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// CompaniesScannedTotal tracks companies scanned by the batch scanner
	CompaniesScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scanner",
			Name:      "companies_total",
			Help:      "Total number of companies scanned",
		},
	)

	// JanitorDeletedTotal tracks candidates deleted by the retention janitor
	JanitorDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "janitor",
			Name:      "deleted_total",
			Help:      "Total number of candidates deleted by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks Kafka messages consumed
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordDetection records a real-time detection run
func RecordDetection(outcome string, durationSeconds float64) {
	DetectionsTotal.WithLabelValues(outcome).Inc()
	DetectionDuration.Observe(durationSeconds)
}

// RecordCandidateCreated records a created candidate
func RecordCandidateCreated(source string) {
	CandidatesCreatedTotal.WithLabelValues(source).Inc()
}

// RecordMerge records an executed merge
func RecordMerge(mode string) {
	MergesTotal.WithLabelValues(mode).Inc()
}

// RecordScanBatch records a processed scan batch
func RecordScanBatch(status string, companies int) {
	ScanBatchesTotal.WithLabelValues(status).Inc()
	CompaniesScannedTotal.Add(float64(companies))
}

// RecordJanitorDeleted records candidates deleted by the janitor
func RecordJanitorDeleted(status string, count int64) {
	JanitorDeletedTotal.WithLabelValues(status).Add(float64(count))
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordKafkaConsume records a consumed Kafka message
func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}
