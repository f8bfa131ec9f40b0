// Package janitor deletes stale resolved candidates per retention policy.
package janitor

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// CandidateStore deletes aged candidates by terminal status.
type CandidateStore interface {
	DeleteAgedByStatus(ctx context.Context, status string, olderThan time.Time) (int64, error)
}

// Config holds the retention policy.
type Config struct {
	RetentionDays int

	// DeleteConfirmed also removes aged confirmed candidates. Off by
	// default so the review audit trail survives.
	DeleteConfirmed bool
}

// Janitor removes rejected (and optionally confirmed) candidates older
// than the retention window. Pending candidates are never touched.
type Janitor struct {
	candidates CandidateStore
	config     Config
	logger     logging.Logger
	now        func() time.Time
}

func New(candidates CandidateStore, config Config, logger logging.Logger) *Janitor {
	return &Janitor{
		candidates: candidates,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one cleanup pass and returns the number of deleted rows.
func (j *Janitor) Run(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "janitor.Janitor.Run")
	defer span.End()

	cutoff := j.now().AddDate(0, 0, -j.config.RetentionDays)

	deleted, err := j.candidates.DeleteAgedByStatus(ctx, models.CandidateStatusRejected, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.RecordJanitorDeleted(models.CandidateStatusRejected, deleted)

	total := deleted

	if j.config.DeleteConfirmed {
		confirmed, err := j.candidates.DeleteAgedByStatus(ctx, models.CandidateStatusConfirmed, cutoff)
		if err != nil {
			return total, err
		}
		metrics.RecordJanitorDeleted(models.CandidateStatusConfirmed, confirmed)
		total += confirmed
	}

	j.logger.WithContext(ctx).WithFields(map[string]any{
		"deleted": total,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Retention cleanup completed")

	return total, nil
}
