// Package merging executes atomic company merges.
package merging

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// maxChainDepth bounds root resolution so a corrupted chain cannot
// loop forever.
const maxChainDepth = 10

// CompanyStore is the company persistence surface the engine needs.
type CompanyStore interface {
	DB() database.DB
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Company, error)
	Update(ctx context.Context, company *models.Company) error
}

// CandidateStore confirms the open candidate of a merged pair.
type CandidateStore interface {
	ConfirmOpenPair(ctx context.Context, companyAID, companyBID int64, reviewedBy, notes string) error
}

// AuditStore records executed merges.
type AuditStore interface {
	Create(ctx context.Context, entry *models.MergeAuditLog) error
}

// IndexStore removes merged-away records from the blocking index.
type IndexStore interface {
	Delete(ctx context.Context, companyID int64) error
}

// EventEmitter publishes duplicate.merged after the transaction commits.
type EventEmitter interface {
	EmitDuplicateMerged(ctx context.Context, primaryID, duplicateID int64, overallScore float64, mode, reviewedBy string) error
}

// Engine merges a duplicate company into a primary inside one
// transaction. Partial merges are never observable.
type Engine struct {
	companies  CompanyStore
	candidates CandidateStore
	audit      AuditStore
	index      IndexStore
	emitter    EventEmitter
	logger     logging.Logger
}

func NewEngine(
	companies CompanyStore,
	candidates CandidateStore,
	audit AuditStore,
	index IndexStore,
	emitter EventEmitter,
	logger logging.Logger,
) *Engine {
	return &Engine{
		companies:  companies,
		candidates: candidates,
		audit:      audit,
		index:      index,
		emitter:    emitter,
		logger:     logger,
	}
}

// Merge merges the duplicate into the primary. The primary is first
// resolved to its root so merge chains never form. Stale requests
// (inactive or already-merged records) are rejected without mutation.
func (e *Engine) Merge(ctx context.Context, req *models.MergeRequest) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	if req.PrimaryID == req.DuplicateID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "cannot merge a company into itself")
	}
	if req.Mode == "" {
		req.Mode = models.MergeModeManual
	}

	ctxTx, tx, err := e.companies.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	rootID, err := e.resolveRoot(ctxTx, req.PrimaryID)
	if err != nil {
		return nil, err
	}

	if rootID == req.DuplicateID {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict,
			"company %d resolves to %d, merge would create a cycle", req.PrimaryID, req.DuplicateID)
	}

	primary, duplicate, err := e.lockPair(ctxTx, rootID, req.DuplicateID)
	if err != nil {
		return nil, err
	}

	// Re-check under lock: a concurrent merge may have landed between
	// root resolution and locking.
	if primary.IsDuplicate {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "primary company %d was merged concurrently", primary.ID)
	}
	if duplicate.IsDuplicate {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "company %d is already merged", duplicate.ID)
	}
	if !duplicate.IsActive {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "company %d is not active", duplicate.ID)
	}

	mergeFields(primary, duplicate)

	duplicate.IsDuplicate = true
	duplicate.DuplicateOfID = &primary.ID
	duplicate.IsActive = false

	if err := e.companies.Update(ctxTx, primary); err != nil {
		return nil, err
	}
	if err := e.companies.Update(ctxTx, duplicate); err != nil {
		return nil, err
	}

	if err := e.candidates.ConfirmOpenPair(ctxTx, primary.ID, duplicate.ID, req.Actor, req.Reason); err != nil {
		return nil, err
	}
	// When the requested primary resolved to a different root, the
	// candidate the reviewer acted on names the requested pair. Close
	// it too, or it stays pending against a merged-away record.
	if primary.ID != req.PrimaryID {
		if err := e.candidates.ConfirmOpenPair(ctxTx, req.PrimaryID, req.DuplicateID, req.Actor, req.Reason); err != nil {
			return nil, err
		}
	}

	if err := e.audit.Create(ctxTx, &models.MergeAuditLog{
		PrimaryID:    primary.ID,
		DuplicateID:  duplicate.ID,
		OverallScore: req.OverallScore,
		Mode:         req.Mode,
		Actor:        req.Actor,
		Reason:       req.Reason,
	}); err != nil {
		return nil, err
	}

	if err := e.index.Delete(ctxTx, duplicate.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	metrics.RecordMerge(req.Mode)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id":   primary.ID,
		"duplicate_id": duplicate.ID,
		"mode":         req.Mode,
	}).Info("Merged duplicate company")

	if err := e.emitter.EmitDuplicateMerged(ctx, primary.ID, duplicate.ID, req.OverallScore, req.Mode, req.Actor); err != nil {
		// The merge is committed; event delivery is best effort here.
		e.logger.WithContext(ctx).WithError(err).Warn("Merge committed but duplicate.merged emission failed")
	}

	return &models.MergeResult{Primary: primary, DuplicateID: duplicate.ID}, nil
}

// resolveRoot follows duplicate_of_id references until it reaches a
// record that is not itself a duplicate.
func (e *Engine) resolveRoot(ctx context.Context, id int64) (int64, error) {
	current := id
	for depth := 0; depth < maxChainDepth; depth++ {
		company, err := e.companies.GetByID(ctx, current)
		if err != nil {
			return 0, err
		}
		if company == nil {
			return 0, httperror.NewHTTPErrorf(http.StatusNotFound, "company %d does not exist", current)
		}
		if !company.IsDuplicate || company.DuplicateOfID == nil {
			return current, nil
		}
		current = *company.DuplicateOfID
	}
	return 0, httperror.NewHTTPErrorf(http.StatusConflict, "duplicate chain behind company %d exceeds depth %d", id, maxChainDepth)
}

// lockPair locks both rows in ascending id order so concurrent merges
// touching the same records cannot deadlock.
func (e *Engine) lockPair(ctx context.Context, primaryID, duplicateID int64) (*models.Company, *models.Company, error) {
	firstID, secondID := models.OrderPair(primaryID, duplicateID)

	first, err := e.companies.GetByIDForUpdate(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := e.companies.GetByIDForUpdate(ctx, secondID)
	if err != nil {
		return nil, nil, err
	}

	if first == nil || second == nil {
		missing := firstID
		if first != nil {
			missing = secondID
		}
		return nil, nil, httperror.NewHTTPErrorf(http.StatusNotFound, "company %d does not exist", missing)
	}

	if first.ID == primaryID {
		return first, second, nil
	}
	return second, first, nil
}

// mergeFields copies every duplicate field that is empty on the
// primary, and unions the list-valued enrichment fields.
func mergeFields(primary, duplicate *models.Company) {
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}

	fill(&primary.Email, duplicate.Email)
	fill(&primary.Phone, duplicate.Phone)
	fill(&primary.Website, duplicate.Website)
	fill(&primary.Street, duplicate.Street)
	fill(&primary.PostalCode, duplicate.PostalCode)
	fill(&primary.City, duplicate.City)
	fill(&primary.State, duplicate.State)
	fill(&primary.Country, duplicate.Country)
	fill(&primary.LegalForm, duplicate.LegalForm)
	fill(&primary.Industry, duplicate.Industry)
	fill(&primary.Description, duplicate.Description)

	primary.Directors = primary.Directors.Union(duplicate.Directors)
	primary.Services = primary.Services.Union(duplicate.Services)
	primary.Technologies = primary.Technologies.Union(duplicate.Technologies)
	primary.Sources = primary.Sources.Union(duplicate.Sources)
}
