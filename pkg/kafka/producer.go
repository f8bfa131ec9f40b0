package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger logging.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger logging.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// DuplicateEvent is the wire format of the duplicate lifecycle events.
type DuplicateEvent struct {
	EventType         string    `json:"event_type"` // duplicate.detected, duplicate.merged, duplicate.scan_completed
	CompanyAID        int64     `json:"company_a_id,omitempty"`
	CompanyBID        int64     `json:"company_b_id,omitempty"`
	PrimaryID         int64     `json:"primary_id,omitempty"`
	DuplicateID       int64     `json:"duplicate_id,omitempty"`
	OverallScore      float64   `json:"overall_score,omitempty"`
	Mode              string    `json:"mode,omitempty"`
	ReviewedBy        string    `json:"reviewed_by,omitempty"`
	ScannedCount      int64     `json:"scanned_count,omitempty"`
	CandidatesCreated int64     `json:"candidates_created,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// key picks the partition key: the surviving record where one exists.
func (e *DuplicateEvent) key() string {
	if e.PrimaryID != 0 {
		return strconv.FormatInt(e.PrimaryID, 10)
	}
	if e.CompanyAID != 0 {
		return strconv.FormatInt(e.CompanyAID, 10)
	}
	return e.EventType
}

// PublishDuplicateEvent publishes a duplicate lifecycle event to Kafka
func (p *Producer) PublishDuplicateEvent(ctx context.Context, event *DuplicateEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishDuplicateEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish duplicate event")
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "ok")
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"topic":      p.topic,
	}).Debug("Published duplicate event")

	return nil
}
