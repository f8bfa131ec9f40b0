// Package auditlog records executed merges.
package auditlog

import (
	"context"
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

// Create writes one audit row for an executed merge.
func (r *Repository) Create(ctx context.Context, entry *models.MergeAuditLog) error {
	ctx, span := tracing.StartSpan(ctx, "auditlog.Repository.Create")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("merge_audit_log").
		Cols("primary_id", "duplicate_id", "overall_score", "mode", "actor", "reason").
		Values(entry.PrimaryID, entry.DuplicateID, entry.OverallScore, entry.Mode, entry.Actor, entry.Reason).
		Returning("id", "created_at")

	query, args := ib.Build()

	if err := r.db.Q(ctx).QueryRowxContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"primary_id":   entry.PrimaryID,
			"duplicate_id": entry.DuplicateID,
		}).Error("Failed to create merge audit entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge audit entry")
	}

	return nil
}

// CountByMode returns the number of merges executed in the given mode.
func (r *Repository) CountByMode(ctx context.Context, mode string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "auditlog.Repository.CountByMode")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From("merge_audit_log")
	sb.Where(sb.Equal("mode", mode))

	query, args := sb.Build()

	var count int64
	if err := r.db.Q(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("mode", mode).Error("Failed to count merges by mode")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count merges by mode")
	}

	return count, nil
}

// ListByCompany returns the audit entries touching a company, newest first.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64, limit int) ([]models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "auditlog.Repository.ListByCompany")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "primary_id", "duplicate_id", "overall_score", "mode", "actor", "reason", "created_at").
		From("merge_audit_log")
	sb.Where(sb.Or(
		sb.Equal("primary_id", companyID),
		sb.Equal("duplicate_id", companyID),
	))
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()

	entries := []models.MergeAuditLog{}
	if err := r.db.Q(ctx).SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", companyID).Error("Failed to list merge audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge audit entries")
	}

	return entries, nil
}
