// Package company provides the repository for company records.
package company

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

var columns = []string{
	"id", "name", "street", "postal_code", "city", "state", "country",
	"email", "phone", "website", "legal_form", "industry", "description",
	"directors", "services", "technologies", "sources",
	"is_duplicate", "duplicate_of_id", "is_active", "created_at", "updated_at",
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

// GetByID returns the company or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.GetByID")
	defer span.End()

	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate returns the company with a row lock held for the
// duration of the surrounding transaction.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.GetByIDForUpdate")
	defer span.End()

	return r.getByID(ctx, id, true)
}

func (r *Repository) getByID(ctx context.Context, id int64, forUpdate bool) (*models.Company, error) {
	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("companies")
	sb.Where(sb.Equal("id", id))
	if forUpdate {
		sb.SQL("FOR UPDATE")
	}

	query, args := sb.Build()

	var company models.Company
	if err := r.db.Q(ctx).GetContext(ctx, &company, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", id).Error("Failed to get company")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get company %d", id)
	}

	return &company, nil
}

// ListActiveAfter returns up to limit active, non-duplicate companies
// with id greater than afterID, ordered by id. The stable ordering is
// what makes batch scans resumable.
func (r *Repository) ListActiveAfter(ctx context.Context, afterID int64, limit int) ([]models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.ListActiveAfter")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...).From("companies")
	sb.Where(
		sb.GreaterThan("id", afterID),
		"is_active = TRUE",
		"is_duplicate = FALSE",
	)
	sb.OrderBy("id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()

	companies := []models.Company{}
	if err := r.db.Q(ctx).SelectContext(ctx, &companies, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list companies")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list companies after %d", afterID)
	}

	return companies, nil
}

// Update persists the mergeable fields and duplicate flags of a company.
func (r *Repository) Update(ctx context.Context, company *models.Company) error {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("companies")
	ub.Set(
		ub.Assign("name", company.Name),
		ub.Assign("street", company.Street),
		ub.Assign("postal_code", company.PostalCode),
		ub.Assign("city", company.City),
		ub.Assign("state", company.State),
		ub.Assign("country", company.Country),
		ub.Assign("email", company.Email),
		ub.Assign("phone", company.Phone),
		ub.Assign("website", company.Website),
		ub.Assign("legal_form", company.LegalForm),
		ub.Assign("industry", company.Industry),
		ub.Assign("description", company.Description),
		ub.Assign("directors", company.Directors),
		ub.Assign("services", company.Services),
		ub.Assign("technologies", company.Technologies),
		ub.Assign("sources", company.Sources),
		ub.Assign("is_duplicate", company.IsDuplicate),
		ub.Assign("duplicate_of_id", company.DuplicateOfID),
		ub.Assign("is_active", company.IsActive),
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("id", company.ID))

	query, args := ub.Build()

	if _, err := r.db.Q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", company.ID).Error("Failed to update company")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update company %d", company.ID)
	}

	return nil
}

// GetBriefs returns the reduced projections for a set of company ids.
func (r *Repository) GetBriefs(ctx context.Context, ids []int64) ([]models.CompanyBrief, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.GetBriefs")
	defer span.End()

	if len(ids) == 0 {
		return []models.CompanyBrief{}, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "name", "city", "phone", "website", "is_duplicate", "is_active").From("companies")

	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	sb.Where(sb.In("id", idArgs...))

	query, args := sb.Build()

	briefs := []models.CompanyBrief{}
	if err := r.db.Q(ctx).SelectContext(ctx, &briefs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get company briefs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get company briefs")
	}

	return briefs, nil
}
