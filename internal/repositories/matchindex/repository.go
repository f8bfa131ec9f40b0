// Package matchindex maintains the blocking index: normalized company
// fields queried to bound the comparison pool.
package matchindex

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var companyColumns = []string{
	"c.id", "c.name", "c.street", "c.postal_code", "c.city", "c.state", "c.country",
	"c.email", "c.phone", "c.website", "c.legal_form", "c.industry", "c.description",
	"c.directors", "c.services", "c.technologies", "c.sources",
	"c.is_duplicate", "c.duplicate_of_id", "c.is_active", "c.created_at", "c.updated_at",
}

type Repository struct {
	db     database.DB
	logger logging.Logger
}

func New(db database.DB, logger logging.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Upsert writes a company's normalized blocking keys.
func (r *Repository) Upsert(ctx context.Context, entry *models.MatchIndexEntry) error {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.Upsert")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("company_match_index").
		Cols("company_id", "normalized_name", "name_prefix", "normalized_city", "normalized_phone", "normalized_website").
		Values(entry.CompanyID, entry.NormalizedName, entry.NamePrefix, entry.NormalizedCity, entry.NormalizedPhone, entry.NormalizedWebsite)

	ub := ib.OnConflict("company_id")
	ub.Set(
		ub.Assign("normalized_name", database.Excluded("normalized_name")),
		ub.Assign("name_prefix", database.Excluded("name_prefix")),
		ub.Assign("normalized_city", database.Excluded("normalized_city")),
		ub.Assign("normalized_phone", database.Excluded("normalized_phone")),
		ub.Assign("normalized_website", database.Excluded("normalized_website")),
		"updated_at = NOW()",
	)

	query, args := ib.Build()

	if _, err := r.db.Q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", entry.CompanyID).Error("Failed to upsert match index entry")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert match index entry for company %d", entry.CompanyID)
	}

	return nil
}

// FindPool returns active, non-duplicate companies sharing a blocking
// key with the entry: same normalized city and name prefix, or an
// exact normalized phone or website. The entry's own company is
// excluded. Never scans the full table.
func (r *Repository) FindPool(ctx context.Context, entry *models.MatchIndexEntry, limit int) ([]models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.FindPool")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(companyColumns...).
		From("companies c").
		Join("company_match_index i", "i.company_id = c.id")

	blockingConds := []string{}
	if entry.NormalizedCity != "" && entry.NamePrefix != "" {
		blockingConds = append(blockingConds, sb.And(
			sb.Equal("i.normalized_city", entry.NormalizedCity),
			sb.Equal("i.name_prefix", entry.NamePrefix),
		))
	}
	if entry.NormalizedPhone != "" {
		blockingConds = append(blockingConds, sb.Equal("i.normalized_phone", entry.NormalizedPhone))
	}
	if entry.NormalizedWebsite != "" {
		blockingConds = append(blockingConds, sb.Equal("i.normalized_website", entry.NormalizedWebsite))
	}

	if len(blockingConds) == 0 {
		return []models.Company{}, nil
	}

	sb.Where(
		sb.NotEqual("c.id", entry.CompanyID),
		"c.is_active = TRUE",
		"c.is_duplicate = FALSE",
		sb.Or(blockingConds...),
	)
	sb.OrderBy("c.id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()

	companies := []models.Company{}
	if err := r.db.Q(ctx).SelectContext(ctx, &companies, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", entry.CompanyID).Error("Failed to find comparison pool")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find comparison pool for company %d", entry.CompanyID)
	}

	return companies, nil
}

// Delete removes a company's blocking keys. Called when a record is
// merged away so it stops appearing in pools.
func (r *Repository) Delete(ctx context.Context, companyID int64) error {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom("company_match_index")
	db.Where(db.Equal("company_id", companyID))

	query, args := db.Build()

	if _, err := r.db.Q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("company_id", companyID).Error("Failed to delete match index entry")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete match index entry for company %d", companyID)
	}

	return nil
}
