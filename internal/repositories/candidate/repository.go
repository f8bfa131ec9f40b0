// Package candidate provides the repository for duplicate candidates.
package candidate

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const uniqueViolation = pq.ErrorCode("23505")

var columns = []string{
	"id", "company_a_id", "company_b_id",
	"name_score", "address_score", "phone_score", "website_score", "overall_score",
	"status", "reviewed_by", "reviewed_at", "notes", "created_at",
}

// ListParams filters and paginates candidate listings.
type ListParams struct {
	Status   string
	MinScore float64
	Skip     int
	Limit    int
}

type Repository struct {
	db     database.DB
	logger logging.Logger
}

func New(db database.DB, logger logging.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB exposes the underlying handle for transaction control.
func (r *Repository) DB() database.DB {
	return r.db
}

// CreatePending inserts a pending candidate for the pair unless one
// already exists in any status. The pair is stored ordered (lower id
// first); a concurrent insert losing the unique-index race is treated
// as not-created, never as an error.
func (r *Repository) CreatePending(ctx context.Context, cand *models.DuplicateCandidate) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.CreatePending")
	defer span.End()

	aID, bID := models.OrderPair(cand.CompanyAID, cand.CompanyBID)
	if aID == bID {
		return false, httperror.NewHTTPError(http.StatusBadRequest, "candidate pair must reference two distinct companies")
	}

	existing, err := r.GetByPair(ctx, aID, bID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	ib := database.NewInsertBuilder().
		InsertInto("duplicate_candidates").
		Cols("company_a_id", "company_b_id",
			"name_score", "address_score", "phone_score", "website_score", "overall_score",
			"status").
		Values(aID, bID,
			cand.NameScore, cand.AddressScore, cand.PhoneScore, cand.WebsiteScore, cand.OverallScore,
			models.CandidateStatusPending).
		OnConflictDoNothing()

	query, args := ib.Build()

	res, err := r.db.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"company_a_id": aID,
			"company_b_id": bID,
		}).Error("Failed to create duplicate candidate")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate candidate")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}

	return rows > 0, nil
}

// GetByID returns the candidate or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("duplicate_candidates")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var cand models.DuplicateCandidate
	if err := r.db.Q(ctx).GetContext(ctx, &cand, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Error("Failed to get candidate")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get candidate %d", id)
	}

	return &cand, nil
}

// GetByPair returns the candidate for an ordered pair in any status,
// or nil when none exists.
func (r *Repository) GetByPair(ctx context.Context, companyAID, companyBID int64) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByPair")
	defer span.End()

	aID, bID := models.OrderPair(companyAID, companyBID)

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("duplicate_candidates")
	sb.Where(
		sb.Equal("company_a_id", aID),
		sb.Equal("company_b_id", bID),
	)
	sb.OrderBy("created_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()

	var cand models.DuplicateCandidate
	if err := r.db.Q(ctx).GetContext(ctx, &cand, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get candidate by pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get candidate by pair")
	}

	return &cand, nil
}

// GetOpenByPair returns the pending candidate for an unordered pair,
// or nil when none is open.
func (r *Repository) GetOpenByPair(ctx context.Context, companyAID, companyBID int64) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetOpenByPair")
	defer span.End()

	aID, bID := models.OrderPair(companyAID, companyBID)

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("duplicate_candidates")
	sb.Where(
		sb.Equal("company_a_id", aID),
		sb.Equal("company_b_id", bID),
		sb.Equal("status", models.CandidateStatusPending),
	)

	query, args := sb.Build()

	var cand models.DuplicateCandidate
	if err := r.db.Q(ctx).GetContext(ctx, &cand, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get open candidate by pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get open candidate by pair")
	}

	return &cand, nil
}

// List returns a page of candidates plus the total count for the filter.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.DuplicateCandidate, int64, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.List")
	defer span.End()

	where := func(sb *database.SelectBuilder) {
		if params.Status != "" {
			sb.Where(sb.Equal("status", params.Status))
		}
		if params.MinScore > 0 {
			sb.Where(sb.GreaterEqualThan("overall_score", params.MinScore))
		}
	}

	countSB := database.NewSelectBuilder()
	countSB.Select("COUNT(*)").From("duplicate_candidates")
	where(countSB)

	countQuery, countArgs := countSB.Build()

	var total int64
	if err := r.db.Q(ctx).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count candidates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count candidates")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("duplicate_candidates")
	where(sb)
	sb.OrderBy("overall_score").Desc()
	sb.Limit(params.Limit).Offset(params.Skip)

	query, args := sb.Build()

	candidates := []models.DuplicateCandidate{}
	if err := r.db.Q(ctx).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list candidates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidates")
	}

	return candidates, total, nil
}

// UpdateStatus moves a pending candidate into a terminal status and
// returns the updated row, or nil when the candidate was not pending.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status, reviewedBy, notes string) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.UpdateStatus")
	defer span.End()

	query := `UPDATE duplicate_candidates
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), notes = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + columnList()

	var cand models.DuplicateCandidate
	err := r.db.Q(ctx).GetContext(ctx, &cand, query, status, reviewedBy, notes, id, models.CandidateStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Error("Failed to update candidate status")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update candidate %d", id)
	}

	return &cand, nil
}

// ConfirmOpenPair confirms the pending candidate of an unordered pair
// if one exists. Used by the merge executor inside its transaction.
func (r *Repository) ConfirmOpenPair(ctx context.Context, companyAID, companyBID int64, reviewedBy, notes string) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ConfirmOpenPair")
	defer span.End()

	aID, bID := models.OrderPair(companyAID, companyBID)

	query := `UPDATE duplicate_candidates
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), notes = $3
		WHERE company_a_id = $4 AND company_b_id = $5 AND status = $6`

	_, err := r.db.Q(ctx).ExecContext(ctx, query,
		models.CandidateStatusConfirmed, reviewedBy, notes, aID, bID, models.CandidateStatusPending)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to confirm open candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to confirm open candidate")
	}

	return nil
}

// Stats returns counts by status. auto_merged is filled by the caller
// from the merge audit log.
func (r *Repository) Stats(ctx context.Context) (*models.CandidateStats, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.Stats")
	defer span.End()

	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
		COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
		0::bigint AS auto_merged
		FROM duplicate_candidates`

	var stats models.CandidateStats
	if err := r.db.Q(ctx).GetContext(ctx, &stats, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get candidate stats")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get candidate stats")
	}

	return &stats, nil
}

// DeleteAgedByStatus deletes candidates in the given terminal status
// created before the cutoff. Pending candidates are never deleted.
func (r *Repository) DeleteAgedByStatus(ctx context.Context, status string, olderThan time.Time) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.DeleteAgedByStatus")
	defer span.End()

	if status == models.CandidateStatusPending {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "pending candidates are not eligible for deletion")
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom("duplicate_candidates")
	db.Where(
		db.Equal("status", status),
		db.LessThan("created_at", olderThan),
	)

	query, args := db.Build()

	res, err := r.db.Q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("status", status).Error("Failed to delete aged candidates")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete aged candidates")
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return deleted, nil
}

func columnList() string {
	list := columns[0]
	for _, c := range columns[1:] {
		list += ", " + c
	}
	return list
}
