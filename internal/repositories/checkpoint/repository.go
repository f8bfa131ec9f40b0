// Package checkpoint persists batch scan progress.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Repository struct {
	db     database.DB
	logger logging.Logger
}

func New(db database.DB, logger logging.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Get returns the checkpoint for a job, or nil when none exists.
func (r *Repository) Get(ctx context.Context, jobName string) (*models.ScanCheckpoint, error) {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("job_name", "last_company_id", "scanned_count", "candidates_created", "started_at", "updated_at").
		From("scan_checkpoints")
	sb.Where(sb.Equal("job_name", jobName))

	query, args := sb.Build()

	var cp models.ScanCheckpoint
	if err := r.db.Q(ctx).GetContext(ctx, &cp, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("job_name", jobName).Error("Failed to get scan checkpoint")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get scan checkpoint %s", jobName)
	}

	return &cp, nil
}

// Upsert stores the checkpoint. Committed inside the same transaction
// as the batch's candidates so progress and results stay consistent.
func (r *Repository) Upsert(ctx context.Context, cp *models.ScanCheckpoint) error {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.Repository.Upsert")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("scan_checkpoints").
		Cols("job_name", "last_company_id", "scanned_count", "candidates_created", "started_at").
		Values(cp.JobName, cp.LastCompanyID, cp.ScannedCount, cp.CandidatesCreated, cp.StartedAt)

	ub := ib.OnConflict("job_name")
	ub.Set(
		ub.Assign("last_company_id", database.Excluded("last_company_id")),
		ub.Assign("scanned_count", database.Excluded("scanned_count")),
		ub.Assign("candidates_created", database.Excluded("candidates_created")),
		"updated_at = NOW()",
	)

	query, args := ib.Build()

	if _, err := r.db.Q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_name", cp.JobName).Error("Failed to upsert scan checkpoint")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert scan checkpoint %s", cp.JobName)
	}

	return nil
}

// Reset removes the checkpoint so the next run starts from the beginning.
func (r *Repository) Reset(ctx context.Context, jobName string) error {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.Repository.Reset")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom("scan_checkpoints")
	db.Where(db.Equal("job_name", jobName))

	query, args := db.Build()

	if _, err := r.db.Q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_name", jobName).Error("Failed to reset scan checkpoint")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to reset scan checkpoint %s", jobName)
	}

	return nil
}
