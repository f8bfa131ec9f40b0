package matching

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// namePrefixLen is the blocking prefix length for normalized names.
const namePrefixLen = 4

// CompanyStore loads company records.
type CompanyStore interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
}

// IndexStore maintains blocking keys and serves bounded pools.
type IndexStore interface {
	Upsert(ctx context.Context, entry *models.MatchIndexEntry) error
	FindPool(ctx context.Context, entry *models.MatchIndexEntry, limit int) ([]models.Company, error)
}

// CandidateStore creates pending candidates idempotently.
type CandidateStore interface {
	CreatePending(ctx context.Context, cand *models.DuplicateCandidate) (bool, error)
}

// Merger executes auto-merges.
type Merger interface {
	Merge(ctx context.Context, req *models.MergeRequest) (*models.MergeResult, error)
}

// EventEmitter publishes duplicate.detected events.
type EventEmitter interface {
	EmitDuplicateDetected(ctx context.Context, companyAID, companyBID int64, overallScore float64) error
}

// Detector runs duplicate detection for one company at a time,
// immediately after the record lands.
type Detector struct {
	companies  CompanyStore
	index      IndexStore
	candidates CandidateStore
	merger     Merger
	emitter    EventEmitter
	scorer     *Scorer
	policy     *Policy
	maxPool    int
	workers    int
	logger     logging.Logger
}

func NewDetector(
	companies CompanyStore,
	index IndexStore,
	candidates CandidateStore,
	merger Merger,
	emitter EventEmitter,
	scorer *Scorer,
	policy *Policy,
	maxPool int,
	workers int,
	logger logging.Logger,
) *Detector {
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		companies:  companies,
		index:      index,
		candidates: candidates,
		merger:     merger,
		emitter:    emitter,
		scorer:     scorer,
		policy:     policy,
		maxPool:    maxPool,
		workers:    workers,
		logger:     logger,
	}
}

// IndexEntry builds the normalized blocking keys for a company.
func IndexEntry(company *models.Company, countryCode string) *models.MatchIndexEntry {
	return &models.MatchIndexEntry{
		CompanyID:         company.ID,
		NormalizedName:    normalizers.Name(company.Name),
		NamePrefix:        normalizers.NamePrefix(company.Name, namePrefixLen),
		NormalizedCity:    normalizers.City(company.City),
		NormalizedPhone:   normalizers.Phone(company.Phone, countryCode),
		NormalizedWebsite: normalizers.Website(company.Website),
	}
}

// ProcessCompany checks one company against its blocking pool. The
// first auto-merge classification merges the company away and ends the
// run; candidate classifications create pending candidates
// idempotently. Safe to retry: reprocessing a merged or missing
// company is a no-op.
func (d *Detector) ProcessCompany(ctx context.Context, companyID int64) error {
	ctx, span := tracing.StartSpan(ctx, "matching.Detector.ProcessCompany")
	defer span.End()

	start := time.Now()

	company, err := d.companies.GetByID(ctx, companyID)
	if err != nil {
		return err
	}
	if company == nil {
		d.logger.WithContext(ctx).WithField("company_id", companyID).Warn("Company not found, skipping detection")
		return nil
	}
	if !company.IsActive || company.IsDuplicate {
		d.logger.WithContext(ctx).WithField("company_id", companyID).Debug("Company inactive or merged, skipping detection")
		return nil
	}

	entry := IndexEntry(company, d.scorer.countryCode)
	if err := d.index.Upsert(ctx, entry); err != nil {
		return err
	}

	pool, err := d.index.FindPool(ctx, entry, d.maxPool)
	if err != nil {
		return err
	}

	decisions := d.decidePool(company, pool)

	outcome := OutcomeNoMatch
	candidatesCreated := 0

	for i := range pool {
		other := &pool[i]
		decision := decisions[i]

		switch decision.Outcome {
		case OutcomeAutoMerge:
			// The pre-existing record survives, the new one merges away.
			req := &models.MergeRequest{
				PrimaryID:    other.ID,
				DuplicateID:  company.ID,
				OverallScore: decision.Confidence,
				Mode:         models.MergeModeAuto,
				Actor:        "system",
			}
			if _, err := d.merger.Merge(ctx, req); err != nil {
				return err
			}

			metrics.RecordDetection(string(OutcomeAutoMerge), time.Since(start).Seconds())
			d.logger.WithContext(ctx).WithFields(map[string]any{
				"company_id": company.ID,
				"primary_id": other.ID,
				"confidence": decision.Confidence,
			}).Info("Auto-merged duplicate company")
			return nil

		case OutcomeCandidate:
			cand := candidateFromDecision(company.ID, other.ID, decision)
			created, err := d.candidates.CreatePending(ctx, cand)
			if err != nil {
				return err
			}
			if created {
				candidatesCreated++
				metrics.RecordCandidateCreated("detector")
				if err := d.emitter.EmitDuplicateDetected(ctx, cand.CompanyAID, cand.CompanyBID, decision.Confidence); err != nil {
					d.logger.WithContext(ctx).WithError(err).Warn("Candidate created but duplicate.detected emission failed")
				}
			}
			outcome = OutcomeCandidate
		}
	}

	metrics.RecordDetection(string(outcome), time.Since(start).Seconds())

	if candidatesCreated > 0 {
		d.logger.WithContext(ctx).WithFields(map[string]any{
			"company_id":         company.ID,
			"pool_size":          len(pool),
			"candidates_created": candidatesCreated,
		}).Info("Flagged duplicate candidates")
	}

	return nil
}

// decidePool scores the pool over a bounded worker pool. Scoring is
// pure; auto-merges and candidate writes happen serially afterwards.
func (d *Detector) decidePool(company *models.Company, pool []models.Company) []Decision {
	decisions := make([]Decision, len(pool))

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				decisions[i] = d.policy.Decide(d.scorer.Score(company, &pool[i]))
			}
		}()
	}

	for i := range pool {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return decisions
}

func candidateFromDecision(companyID, otherID int64, decision Decision) *models.DuplicateCandidate {
	aID, bID := models.OrderPair(companyID, otherID)
	return &models.DuplicateCandidate{
		CompanyAID:   aID,
		CompanyBID:   bID,
		NameScore:    decision.Scores.Name,
		AddressScore: decision.Scores.Address,
		PhoneScore:   decision.Scores.Phone,
		WebsiteScore: decision.Scores.Website,
		OverallScore: decision.Confidence,
		Status:       models.CandidateStatusPending,
	}
}
