// Package scanner runs the scheduled full-corpus duplicate sweep.
package scanner

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// JobName keys the scanner's checkpoint row.
const JobName = "companies"

// ErrScanAlreadyRunning is returned when a scan is triggered while one
// is in progress.
var ErrScanAlreadyRunning = errors.New("scan already running")

// CompanyLister pages the active corpus in ascending id order.
type CompanyLister interface {
	ListActiveAfter(ctx context.Context, afterID int64, limit int) ([]models.Company, error)
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

// CheckpointStore persists scan progress between batches.
type CheckpointStore interface {
	Get(ctx context.Context, jobName string) (*models.ScanCheckpoint, error)
	Upsert(ctx context.Context, cp *models.ScanCheckpoint) error
	Reset(ctx context.Context, jobName string) error
}

// EventEmitter publishes duplicate.scan_completed.
type EventEmitter interface {
	EmitScanCompleted(ctx context.Context, scannedCount, candidatesCreated int64) error
}

// Config bounds the scan's batches and workers.
type Config struct {
	BatchSize    int
	WorkerCount  int
	BatchTimeout time.Duration
	MaxPoolSize  int
}

// Result summarizes a completed scan run.
type Result struct {
	ScannedCount      int64 `json:"scanned_count"`
	CandidatesCreated int64 `json:"candidates_created"`
}

// Scanner sweeps the active corpus in checkpointed batches. It only
// ever creates candidates; auto-merging is reserved for the real-time
// path where a mistake affects a single fresh record.
type Scanner struct {
	db          database.DB
	companies   CompanyLister
	index       IndexStore
	candidates  CandidateStore
	checkpoints CheckpointStore
	emitter     EventEmitter
	scorer      *matching.Scorer
	policy      *matching.Policy
	config      Config
	logger      logging.Logger

	mu      sync.Mutex
	running bool
}

func New(
	db database.DB,
	companies CompanyLister,
	index IndexStore,
	candidates CandidateStore,
	checkpoints CheckpointStore,
	emitter EventEmitter,
	scorer *matching.Scorer,
	policy *matching.Policy,
	config Config,
	logger logging.Logger,
) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	return &Scanner{
		db:          db,
		companies:   companies,
		index:       index,
		candidates:  candidates,
		checkpoints: checkpoints,
		emitter:     emitter,
		scorer:      scorer,
		policy:      policy,
		config:      config,
		logger:      logger,
	}
}

// IsRunning reports whether a scan is in progress.
func (s *Scanner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes one full scan, resuming from the stored checkpoint.
// Each batch commits its candidates and checkpoint together, so a
// failure or cancellation mid-run loses at most the current batch.
// Cancellation is honored at batch boundaries only.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, span := tracing.StartSpan(ctx, "scanner.Scanner.Run")
	defer span.End()

	start := time.Now()

	cp, err := s.checkpoints.Get(ctx, JobName)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = &models.ScanCheckpoint{JobName: JobName, StartedAt: start}
		s.logger.WithContext(ctx).Info("Starting duplicate scan")
	} else {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"last_company_id": cp.LastCompanyID,
			"scanned_count":   cp.ScannedCount,
		}).Info("Resuming duplicate scan from checkpoint")
	}

	for {
		select {
		case <-ctx.Done():
			// The prior checkpoint stands; the next run resumes there.
			return nil, ctx.Err()
		default:
		}

		done, err := s.runBatch(ctx, cp)
		if err != nil {
			metrics.RecordScanBatch("error", 0)
			return nil, err
		}
		if done {
			break
		}
	}

	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	if err := s.emitter.EmitScanCompleted(ctx, cp.ScannedCount, cp.CandidatesCreated); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Scan completed but duplicate.scan_completed emission failed")
	}

	if err := s.checkpoints.Reset(ctx, JobName); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to reset scan checkpoint after completion")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"scanned_count":      cp.ScannedCount,
		"candidates_created": cp.CandidatesCreated,
		"duration":           time.Since(start).String(),
	}).Info("Duplicate scan completed")

	return &Result{ScannedCount: cp.ScannedCount, CandidatesCreated: cp.CandidatesCreated}, nil
}

// runBatch processes one batch under its own timeout. Returns done
// when the corpus is exhausted.
func (s *Scanner) runBatch(ctx context.Context, cp *models.ScanCheckpoint) (bool, error) {
	batchCtx, cancel := context.WithTimeout(ctx, s.config.BatchTimeout)
	defer cancel()

	batch, err := s.companies.ListActiveAfter(batchCtx, cp.LastCompanyID, s.config.BatchSize)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return true, nil
	}

	candidates, err := s.scoreBatch(batchCtx, batch)
	if err != nil {
		return false, err
	}

	created, err := s.commitBatch(batchCtx, batch, candidates, cp)
	if err != nil {
		return false, err
	}

	metrics.RecordScanBatch("ok", len(batch))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size":         len(batch),
		"last_company_id":    cp.LastCompanyID,
		"candidates_created": created,
	}).Debug("Scan batch committed")

	return false, nil
}

// scoreBatch refreshes the batch's blocking keys and scores each
// company against its pool. Scoring is pure and fans out over a
// bounded worker pool; all writes happen later in commitBatch.
func (s *Scanner) scoreBatch(ctx context.Context, batch []models.Company) ([]*models.DuplicateCandidate, error) {
	entries := make([]*models.MatchIndexEntry, len(batch))
	for i := range batch {
		entries[i] = s.scorer.IndexEntry(&batch[i])
		if err := s.index.Upsert(ctx, entries[i]); err != nil {
			return nil, err
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		out      []*models.DuplicateCandidate
		firstErr error
	)

	jobs := make(chan int)
	for w := 0; w < s.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				found, err := s.scoreCompany(ctx, &batch[i], entries[i])
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				out = append(out, found...)
				mu.Unlock()
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// scoreCompany compares one company against its blocking pool. Every
// match, including would-be auto-merges, becomes a pending candidate.
func (s *Scanner) scoreCompany(ctx context.Context, company *models.Company, entry *models.MatchIndexEntry) ([]*models.DuplicateCandidate, error) {
	pool, err := s.index.FindPool(ctx, entry, s.config.MaxPoolSize)
	if err != nil {
		return nil, err
	}

	found := []*models.DuplicateCandidate{}
	for i := range pool {
		other := &pool[i]

		decision := s.policy.Decide(s.scorer.Score(company, other))
		if decision.Outcome == matching.OutcomeNoMatch {
			continue
		}

		aID, bID := models.OrderPair(company.ID, other.ID)
		found = append(found, &models.DuplicateCandidate{
			CompanyAID:   aID,
			CompanyBID:   bID,
			NameScore:    decision.Scores.Name,
			AddressScore: decision.Scores.Address,
			PhoneScore:   decision.Scores.Phone,
			WebsiteScore: decision.Scores.Website,
			OverallScore: decision.Confidence,
			Status:       models.CandidateStatusPending,
		})
	}

	return found, nil
}

// commitBatch writes the batch's candidates and the advanced
// checkpoint in a single transaction.
func (s *Scanner) commitBatch(ctx context.Context, batch []models.Company, candidates []*models.DuplicateCandidate, cp *models.ScanCheckpoint) (int64, error) {
	ctxTx, tx, err := s.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctxTx)

	var created int64
	for _, cand := range candidates {
		ok, err := s.candidates.CreatePending(ctxTx, cand)
		if err != nil {
			return 0, err
		}
		if ok {
			created++
			metrics.RecordCandidateCreated("scanner")
		}
	}

	cp.LastCompanyID = batch[len(batch)-1].ID
	cp.ScannedCount += int64(len(batch))
	cp.CandidatesCreated += created

	if err := s.checkpoints.Upsert(ctxTx, cp); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return 0, err
	}

	return created, nil
}
