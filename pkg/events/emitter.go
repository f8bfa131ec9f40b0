// Package events handles event emission for duplicate lifecycle changes
package events

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes duplicate lifecycle events.
type Emitter struct {
	producer *kafka.Producer
	logger   logging.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger logging.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitDuplicateDetected emits a duplicate.detected event for a new candidate pair
func (e *Emitter) EmitDuplicateDetected(ctx context.Context, companyAID, companyBID int64, overallScore float64) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicateDetected")
	defer span.End()

	event := &kafka.DuplicateEvent{
		EventType:    "duplicate.detected",
		CompanyAID:   companyAID,
		CompanyBID:   companyBID,
		OverallScore: overallScore,
	}

	if err := e.producer.PublishDuplicateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit duplicate.detected event")
		return err
	}

	return nil
}

// EmitDuplicateMerged emits a duplicate.merged event after a merge commits
func (e *Emitter) EmitDuplicateMerged(ctx context.Context, primaryID, duplicateID int64, overallScore float64, mode, reviewedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicateMerged")
	defer span.End()

	event := &kafka.DuplicateEvent{
		EventType:    "duplicate.merged",
		PrimaryID:    primaryID,
		DuplicateID:  duplicateID,
		OverallScore: overallScore,
		Mode:         mode,
		ReviewedBy:   reviewedBy,
	}

	if err := e.producer.PublishDuplicateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit duplicate.merged event")
		return err
	}

	return nil
}

// EmitScanCompleted emits a duplicate.scan_completed event after a full scan run
func (e *Emitter) EmitScanCompleted(ctx context.Context, scannedCount, candidatesCreated int64) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitScanCompleted")
	defer span.End()

	event := &kafka.DuplicateEvent{
		EventType:         "duplicate.scan_completed",
		ScannedCount:      scannedCount,
		CandidatesCreated: candidatesCreated,
	}

	if err := e.producer.PublishDuplicateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit duplicate.scan_completed event")
		return err
	}

	return nil
}
