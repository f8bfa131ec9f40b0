package handlers

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/auditlog"
	"github.com/Ramsey-B/clover/internal/repositories/candidate"
	"github.com/Ramsey-B/clover/internal/repositories/company"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/scanner"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// DuplicatesHandler handles duplicate review API endpoints
type DuplicatesHandler struct {
	candidates *candidate.Repository
	companies  *company.Repository
	audit      *auditlog.Repository
	merger     *merging.Engine
	scanner    *scanner.Scanner
	logger     logging.Logger
}

// NewDuplicatesHandler creates a new duplicates handler
func NewDuplicatesHandler(
	candidates *candidate.Repository,
	companies *company.Repository,
	audit *auditlog.Repository,
	merger *merging.Engine,
	scan *scanner.Scanner,
	logger logging.Logger,
) *DuplicatesHandler {
	return &DuplicatesHandler{
		candidates: candidates,
		companies:  companies,
		audit:      audit,
		merger:     merger,
		scanner:    scan,
		logger:     logger,
	}
}

// MergeRequest represents the merge request body
type MergeRequest struct {
	PrimaryID int64  `json:"primary_id" validate:"required,gt=0"`
	Notes     string `json:"notes,omitempty"`
}

// RejectRequest represents the reject request body
type RejectRequest struct {
	Notes string `json:"notes,omitempty"`
}

// CandidateListResponse is a page of candidates
type CandidateListResponse struct {
	Items      []models.DuplicateCandidate `json:"items"`
	TotalCount int64                       `json:"total_count"`
	Skip       int                         `json:"skip"`
	Limit      int                         `json:"limit"`
}

// CandidateDetailResponse pairs a candidate with both company records
type CandidateDetailResponse struct {
	Candidate models.DuplicateCandidate `json:"candidate"`
	CompanyA  *models.CompanyBrief      `json:"company_a"`
	CompanyB  *models.CompanyBrief      `json:"company_b"`
}

// MergeResponse returns the surviving record after a merge
type MergeResponse struct {
	Primary     *models.Company `json:"primary"`
	DuplicateID int64           `json:"duplicate_id"`
}

// ScanResponse acknowledges a triggered scan
type ScanResponse struct {
	Status string `json:"status"`
}

// Register registers duplicate review routes
func (h *DuplicatesHandler) Register(g *echo.Group) {
	g.GET("/candidates", h.ListCandidates)
	g.GET("/candidates/:id", h.GetCandidate)
	g.POST("/candidates/:id/merge", h.MergeCandidate)
	g.POST("/candidates/:id/reject", h.RejectCandidate)
	g.POST("/scan", h.TriggerScan)
	g.GET("/stats", h.Stats)
	g.GET("/companies/:id/merges", h.MergeHistory)
}

// ListCandidates returns a page of candidates ordered by score
func (h *DuplicatesHandler) ListCandidates(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.ListCandidates")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	params := candidate.ListParams{
		Status: c.QueryParam("status"),
	}

	switch params.Status {
	case "", models.CandidateStatusPending, models.CandidateStatusConfirmed, models.CandidateStatusRejected:
	default:
		return BadRequest("invalid status: must be pending, confirmed or rejected")
	}

	if raw := c.QueryParam("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil || minScore < 0 || minScore > 1 {
			return BadRequest("invalid min_score: must be a number between 0 and 1")
		}
		params.MinScore = minScore
	}

	params.Skip, _ = strconv.Atoi(c.QueryParam("skip"))
	if params.Skip < 0 {
		params.Skip = 0
	}
	params.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if params.Limit < 1 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}

	items, total, err := h.candidates.List(ctx, params)
	if err != nil {
		return err
	}

	return SuccessResponse(c, CandidateListResponse{
		Items:      items,
		TotalCount: total,
		Skip:       params.Skip,
		Limit:      params.Limit,
	})
}

// GetCandidate returns one candidate with both company records
func (h *DuplicatesHandler) GetCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.GetCandidate")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	cand, err := h.candidates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cand == nil {
		return NotFound("candidate not found")
	}

	briefs, err := h.companies.GetBriefs(ctx, []int64{cand.CompanyAID, cand.CompanyBID})
	if err != nil {
		return err
	}

	resp := CandidateDetailResponse{Candidate: *cand}
	for i := range briefs {
		switch briefs[i].ID {
		case cand.CompanyAID:
			resp.CompanyA = &briefs[i]
		case cand.CompanyBID:
			resp.CompanyB = &briefs[i]
		}
	}

	return SuccessResponse(c, resp)
}

// MergeCandidate confirms a candidate and merges the pair
func (h *DuplicatesHandler) MergeCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.MergeCandidate")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	cand, err := h.candidates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cand == nil {
		return NotFound("candidate not found")
	}
	if cand.Status != models.CandidateStatusPending {
		return Conflict("candidate is already " + cand.Status)
	}

	var duplicateID int64
	switch req.PrimaryID {
	case cand.CompanyAID:
		duplicateID = cand.CompanyBID
	case cand.CompanyBID:
		duplicateID = cand.CompanyAID
	default:
		return BadRequest("primary_id must be one of the candidate's companies")
	}

	result, err := h.merger.Merge(ctx, &models.MergeRequest{
		PrimaryID:    req.PrimaryID,
		DuplicateID:  duplicateID,
		OverallScore: cand.OverallScore,
		Mode:         models.MergeModeManual,
		Actor:        Actor(c),
		Reason:       req.Notes,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, MergeResponse{
		Primary:     result.Primary,
		DuplicateID: result.DuplicateID,
	})
}

// RejectCandidate marks a candidate as not-a-duplicate
func (h *DuplicatesHandler) RejectCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.RejectCandidate")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	updated, err := h.candidates.UpdateStatus(ctx, id, models.CandidateStatusRejected, Actor(c), req.Notes)
	if err != nil {
		return err
	}
	if updated == nil {
		existing, err := h.candidates.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return NotFound("candidate not found")
		}
		return Conflict("candidate is already " + existing.Status)
	}

	return SuccessResponse(c, updated)
}

// TriggerScan starts a full-corpus scan in the background
func (h *DuplicatesHandler) TriggerScan(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.TriggerScan")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	if h.scanner.IsRunning() {
		return Conflict("a scan is already running")
	}

	// The scan outlives the request; it runs on a detached context.
	go func() {
		scanCtx := context.WithoutCancel(ctx)
		if _, err := h.scanner.Run(scanCtx); err != nil {
			h.logger.WithContext(scanCtx).WithError(err).Error("Background duplicate scan failed")
		}
	}()

	return AcceptedResponse(c, ScanResponse{Status: "started"})
}

// MergeHistory returns merges where the company was primary or duplicate
func (h *DuplicatesHandler) MergeHistory(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.MergeHistory")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	entries, err := h.audit.ListByCompany(ctx, id, maxPageSize)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entries)
}

// Stats returns candidate counts by status plus executed auto-merges
func (h *DuplicatesHandler) Stats(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicatesHandler.Stats")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	stats, err := h.candidates.Stats(ctx)
	if err != nil {
		return err
	}

	autoMerged, err := h.audit.CountByMode(ctx, models.MergeModeAuto)
	if err != nil {
		return err
	}
	stats.AutoMerged = autoMerged

	return SuccessResponse(c, stats)
}
