package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeCompanyStore struct {
	companies map[int64]*models.Company
}

func (f *fakeCompanyStore) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	return f.companies[id], nil
}

type fakeIndexStore struct {
	upserts []*models.MatchIndexEntry
	pool    []models.Company
}

func (f *fakeIndexStore) Upsert(ctx context.Context, entry *models.MatchIndexEntry) error {
	f.upserts = append(f.upserts, entry)
	return nil
}

func (f *fakeIndexStore) FindPool(ctx context.Context, entry *models.MatchIndexEntry, limit int) ([]models.Company, error) {
	return f.pool, nil
}

type fakeCandidateStore struct {
	created []*models.DuplicateCandidate
	seen    map[[2]int64]bool
}

func (f *fakeCandidateStore) CreatePending(ctx context.Context, cand *models.DuplicateCandidate) (bool, error) {
	if f.seen == nil {
		f.seen = map[[2]int64]bool{}
	}
	key := [2]int64{cand.CompanyAID, cand.CompanyBID}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.created = append(f.created, cand)
	return true, nil
}

type fakeMerger struct {
	requests []*models.MergeRequest
}

func (f *fakeMerger) Merge(ctx context.Context, req *models.MergeRequest) (*models.MergeResult, error) {
	f.requests = append(f.requests, req)
	return &models.MergeResult{DuplicateID: req.DuplicateID}, nil
}

type fakeEmitter struct {
	detected int
}

func (f *fakeEmitter) EmitDuplicateDetected(ctx context.Context, companyAID, companyBID int64, overallScore float64) error {
	f.detected++
	return nil
}

func newTestDetector(companies *fakeCompanyStore, index *fakeIndexStore, candidates *fakeCandidateStore, merger *fakeMerger, emitter *fakeEmitter) *Detector {
	return NewDetector(
		companies, index, candidates, merger, emitter,
		NewScorer("49"), NewPolicy(DefaultPolicyConfig()),
		50, 4, logging.NewNop(),
	)
}

func TestProcessCompanyAutoMergesOnExactPhone(t *testing.T) {
	existing := models.Company{
		ID: 1, Name: "Tech Solutions GmbH", City: "Berlin",
		Phone: "+49 30 12345678", IsActive: true,
	}
	incoming := &models.Company{
		ID: 2, Name: "TechSolutions", City: "Berlin",
		Phone: "030 12345678", IsActive: true,
	}

	companies := &fakeCompanyStore{companies: map[int64]*models.Company{2: incoming}}
	index := &fakeIndexStore{pool: []models.Company{existing}}
	candidates := &fakeCandidateStore{}
	merger := &fakeMerger{}
	emitter := &fakeEmitter{}

	detector := newTestDetector(companies, index, candidates, merger, emitter)

	err := detector.ProcessCompany(context.Background(), 2)
	require.NoError(t, err)

	// The pre-existing record survives, the new one merges away
	require.Len(t, merger.requests, 1)
	assert.Equal(t, int64(1), merger.requests[0].PrimaryID)
	assert.Equal(t, int64(2), merger.requests[0].DuplicateID)
	assert.Equal(t, models.MergeModeAuto, merger.requests[0].Mode)
	assert.Equal(t, 1.0, merger.requests[0].OverallScore)
	assert.Equal(t, "system", merger.requests[0].Actor)

	assert.Empty(t, candidates.created)
}

func TestProcessCompanyCreatesCandidate(t *testing.T) {
	existing := models.Company{
		ID: 5, Name: "Tech Solutions GmbH", City: "Berlin", IsActive: true,
	}
	incoming := &models.Company{
		ID: 9, Name: "Tech Soluzionz GmbH", City: "Berlin", IsActive: true,
	}

	companies := &fakeCompanyStore{companies: map[int64]*models.Company{9: incoming}}
	index := &fakeIndexStore{pool: []models.Company{existing}}
	candidates := &fakeCandidateStore{}
	merger := &fakeMerger{}
	emitter := &fakeEmitter{}

	detector := newTestDetector(companies, index, candidates, merger, emitter)

	err := detector.ProcessCompany(context.Background(), 9)
	require.NoError(t, err)

	assert.Empty(t, merger.requests)
	require.Len(t, candidates.created, 1)

	cand := candidates.created[0]
	// Pair is stored lower id first
	assert.Equal(t, int64(5), cand.CompanyAID)
	assert.Equal(t, int64(9), cand.CompanyBID)
	assert.Equal(t, models.CandidateStatusPending, cand.Status)
	assert.GreaterOrEqual(t, cand.OverallScore, 0.80)
	assert.Equal(t, 1, emitter.detected)

	// Reprocessing the same record is idempotent
	err = detector.ProcessCompany(context.Background(), 9)
	require.NoError(t, err)
	assert.Len(t, candidates.created, 1)
	assert.Equal(t, 1, emitter.detected)
}

func TestProcessCompanyScoresPoolAcrossWorkers(t *testing.T) {
	incoming := &models.Company{
		ID: 100, Name: "Nordwind Spedition GmbH", City: "Bremen", IsActive: true,
	}

	// Two near-duplicate pool members and a crowd of unrelated ones;
	// concurrent scoring must flag exactly the near-duplicates.
	pool := []models.Company{
		{ID: 1, Name: "Nordwimd Speditien GmbH", City: "Bremen", IsActive: true},
		{ID: 2, Name: "Nordwimd Speditiens GmbH", City: "Bremen", IsActive: true},
	}
	for id := int64(3); id <= 30; id++ {
		pool = append(pool, models.Company{ID: id, Name: "Hansekontor Beratung", City: "Bremen", IsActive: true})
	}

	companies := &fakeCompanyStore{companies: map[int64]*models.Company{100: incoming}}
	index := &fakeIndexStore{pool: pool}
	candidates := &fakeCandidateStore{}
	merger := &fakeMerger{}
	emitter := &fakeEmitter{}

	detector := newTestDetector(companies, index, candidates, merger, emitter)

	require.NoError(t, detector.ProcessCompany(context.Background(), 100))

	assert.Empty(t, merger.requests)
	require.Len(t, candidates.created, 2)
	for _, cand := range candidates.created {
		assert.Equal(t, int64(100), cand.CompanyBID)
		assert.Contains(t, []int64{1, 2}, cand.CompanyAID)
	}
}

func TestProcessCompanySkipsInactiveAndMerged(t *testing.T) {
	inactive := &models.Company{ID: 3, Name: "Closed GmbH", IsActive: false}
	merged := &models.Company{ID: 4, Name: "Merged GmbH", IsActive: true, IsDuplicate: true}

	companies := &fakeCompanyStore{companies: map[int64]*models.Company{3: inactive, 4: merged}}
	index := &fakeIndexStore{}
	candidates := &fakeCandidateStore{}
	merger := &fakeMerger{}
	emitter := &fakeEmitter{}

	detector := newTestDetector(companies, index, candidates, merger, emitter)

	require.NoError(t, detector.ProcessCompany(context.Background(), 3))
	require.NoError(t, detector.ProcessCompany(context.Background(), 4))

	assert.Empty(t, index.upserts)
	assert.Empty(t, candidates.created)
	assert.Empty(t, merger.requests)
}

func TestProcessCompanyMissingIsNoOp(t *testing.T) {
	companies := &fakeCompanyStore{companies: map[int64]*models.Company{}}
	index := &fakeIndexStore{}
	detector := newTestDetector(companies, index, &fakeCandidateStore{}, &fakeMerger{}, &fakeEmitter{})

	// A deleted record must not poison at-least-once retries
	require.NoError(t, detector.ProcessCompany(context.Background(), 404))
	assert.Empty(t, index.upserts)
}
