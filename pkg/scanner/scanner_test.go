package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeTx struct {
	committed bool
}

func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (t *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (t *fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}
func (t *fakeTx) IsOpen() bool { return !t.committed }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeDB struct {
	commits int
}

func (d *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (d *fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}
func (d *fakeDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}
func (d *fakeDB) Q(ctx context.Context) database.Querier { return d }

func (d *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	d.commits++
	return ctx, &fakeTx{}, nil
}

func (d *fakeDB) PingContext(ctx context.Context) error { return nil }
func (d *fakeDB) Close() error                          { return nil }
func (d *fakeDB) SQLX() *sqlx.DB                        { return nil }

type fakeLister struct {
	companies []models.Company
}

func (f *fakeLister) ListActiveAfter(ctx context.Context, afterID int64, limit int) ([]models.Company, error) {
	out := []models.Company{}
	for _, c := range f.companies {
		if c.ID > afterID {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeIndex struct {
	pools map[int64][]models.Company
}

func (f *fakeIndex) Upsert(ctx context.Context, entry *models.MatchIndexEntry) error { return nil }

func (f *fakeIndex) FindPool(ctx context.Context, entry *models.MatchIndexEntry, limit int) ([]models.Company, error) {
	return f.pools[entry.CompanyID], nil
}

// blockingIndex applies the real pooling rules over upserted entries:
// same normalized city and name prefix, or an exact normalized phone
// or website.
type blockingIndex struct {
	mu        sync.Mutex
	entries   map[int64]*models.MatchIndexEntry
	companies map[int64]models.Company
}

func newBlockingIndex() *blockingIndex {
	return &blockingIndex{
		entries:   map[int64]*models.MatchIndexEntry{},
		companies: map[int64]models.Company{},
	}
}

func (f *blockingIndex) Upsert(ctx context.Context, entry *models.MatchIndexEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.CompanyID] = entry
	return nil
}

func (f *blockingIndex) FindPool(ctx context.Context, entry *models.MatchIndexEntry, limit int) ([]models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.Company{}
	for id, other := range f.entries {
		if id == entry.CompanyID {
			continue
		}
		blocked := entry.NormalizedCity != "" && entry.NamePrefix != "" &&
			other.NormalizedCity == entry.NormalizedCity && other.NamePrefix == entry.NamePrefix
		if entry.NormalizedPhone != "" && other.NormalizedPhone == entry.NormalizedPhone {
			blocked = true
		}
		if entry.NormalizedWebsite != "" && other.NormalizedWebsite == entry.NormalizedWebsite {
			blocked = true
		}
		if blocked {
			out = append(out, f.companies[id])
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeCandidates struct {
	created []*models.DuplicateCandidate
	seen    map[[2]int64]bool
}

func (f *fakeCandidates) CreatePending(ctx context.Context, cand *models.DuplicateCandidate) (bool, error) {
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

type fakeCheckpoints struct {
	stored  *models.ScanCheckpoint
	upserts int
	resets  int
}

func (f *fakeCheckpoints) Get(ctx context.Context, jobName string) (*models.ScanCheckpoint, error) {
	if f.stored == nil {
		return nil, nil
	}
	clone := *f.stored
	return &clone, nil
}

func (f *fakeCheckpoints) Upsert(ctx context.Context, cp *models.ScanCheckpoint) error {
	clone := *cp
	f.stored = &clone
	f.upserts++
	return nil
}

func (f *fakeCheckpoints) Reset(ctx context.Context, jobName string) error {
	f.stored = nil
	f.resets++
	return nil
}

type fakeEmitter struct {
	completed int
	scanned   int64
	created   int64
}

func (f *fakeEmitter) EmitScanCompleted(ctx context.Context, scannedCount, candidatesCreated int64) error {
	f.completed++
	f.scanned = scannedCount
	f.created = candidatesCreated
	return nil
}

type scanFixture struct {
	scanner     *Scanner
	db          *fakeDB
	lister      *fakeLister
	index       *fakeIndex
	candidates  *fakeCandidates
	checkpoints *fakeCheckpoints
	emitter     *fakeEmitter
}

func newScanFixture(companies []models.Company, pools map[int64][]models.Company, batchSize int) *scanFixture {
	f := &scanFixture{
		db:          &fakeDB{},
		lister:      &fakeLister{companies: companies},
		index:       &fakeIndex{pools: pools},
		candidates:  &fakeCandidates{},
		checkpoints: &fakeCheckpoints{},
		emitter:     &fakeEmitter{},
	}
	f.scanner = New(
		f.db, f.lister, f.index, f.candidates, f.checkpoints, f.emitter,
		matching.NewScorer("49"), matching.NewPolicy(matching.DefaultPolicyConfig()),
		Config{BatchSize: batchSize, WorkerCount: 2, BatchTimeout: time.Minute, MaxPoolSize: 50},
		logging.NewNop(),
	)
	return f
}

func company(id int64, name, city string) models.Company {
	return models.Company{ID: id, Name: name, City: city, IsActive: true}
}

func TestScanWalksCorpusInBatches(t *testing.T) {
	companies := []models.Company{
		company(1, "Alpha GmbH", "Berlin"),
		company(2, "Beta AG", "Hamburg"),
		company(3, "Gamma KG", "Munich"),
		company(4, "Delta GmbH", "Cologne"),
		company(5, "Epsilon UG", "Bremen"),
	}

	f := newScanFixture(companies, map[int64][]models.Company{}, 2)

	result, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.ScannedCount)
	assert.Equal(t, int64(0), result.CandidatesCreated)

	// One transaction per non-empty batch
	assert.Equal(t, 3, f.db.commits)
	assert.Equal(t, 3, f.checkpoints.upserts)

	// Completed scans reset the checkpoint and emit exactly once
	assert.Equal(t, 1, f.checkpoints.resets)
	assert.Nil(t, f.checkpoints.stored)
	assert.Equal(t, 1, f.emitter.completed)
	assert.Equal(t, int64(5), f.emitter.scanned)
}

func TestScanNeverAutoMerges(t *testing.T) {
	a := models.Company{ID: 1, Name: "Tech Solutions GmbH", City: "Berlin", Phone: "+49 30 12345678", IsActive: true}
	b := models.Company{ID: 2, Name: "TechSolutions", City: "Berlin", Phone: "030 12345678", IsActive: true}

	f := newScanFixture([]models.Company{a, b}, map[int64][]models.Company{
		1: {b},
		2: {a},
	}, 10)

	result, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	// An exact phone match would auto-merge on the real-time path; the
	// scanner only ever files a pending candidate for review.
	assert.Equal(t, int64(1), result.CandidatesCreated)
	require.Len(t, f.candidates.created, 1)

	cand := f.candidates.created[0]
	assert.Equal(t, models.CandidateStatusPending, cand.Status)
	assert.Equal(t, int64(1), cand.CompanyAID)
	assert.Equal(t, int64(2), cand.CompanyBID)
	assert.Equal(t, 1.0, cand.OverallScore)
}

func TestScanCollapsesMirroredPairs(t *testing.T) {
	a := models.Company{ID: 1, Name: "Mirror GmbH", City: "Berlin", Website: "mirror.de", IsActive: true}
	b := models.Company{ID: 2, Name: "Mirror", City: "Berlin", Website: "www.mirror.de", IsActive: true}

	// Both directions of the same pair surface within one batch
	f := newScanFixture([]models.Company{a, b}, map[int64][]models.Company{
		1: {b},
		2: {a},
	}, 10)

	result, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.CandidatesCreated)
	assert.Len(t, f.candidates.created, 1)
}

func TestScanBlockingSurfacesOnlyPlantedPairs(t *testing.T) {
	cities := []string{
		"Berlin", "Hamburg", "Munich", "Cologne", "Frankfurt",
		"Stuttgart", "Leipzig", "Dresden", "Bremen", "Hanover",
	}

	index := newBlockingIndex()
	var companies []models.Company
	id := int64(0)

	// 460 unrelated companies spread over ten cities. Every name has a
	// distinct blocking prefix, so none of them should ever pool.
	for i := 0; i < 460; i++ {
		id++
		c := company(id, fmt.Sprintf("%c%c Handel", 'A'+i/26, 'A'+i%26), cities[i%10])
		companies = append(companies, c)
		index.companies[id] = c
	}

	// 20 planted near-duplicate pairs sharing city and name prefix.
	planted := map[[2]int64]bool{}
	for k := 0; k < 20; k++ {
		name := fmt.Sprintf("S%c Logistik", 'A'+k)
		city := cities[k%10]

		id++
		a := company(id, name, city)
		id++
		b := company(id, name+"e", city)

		companies = append(companies, a, b)
		index.companies[a.ID] = a
		index.companies[b.ID] = b
		planted[[2]int64{a.ID, b.ID}] = true
	}

	f := &scanFixture{
		db:          &fakeDB{},
		lister:      &fakeLister{companies: companies},
		candidates:  &fakeCandidates{},
		checkpoints: &fakeCheckpoints{},
		emitter:     &fakeEmitter{},
	}
	f.scanner = New(
		f.db, f.lister, index, f.candidates, f.checkpoints, f.emitter,
		matching.NewScorer("49"), matching.NewPolicy(matching.DefaultPolicyConfig()),
		Config{BatchSize: 100, WorkerCount: 4, BatchTimeout: time.Minute, MaxPoolSize: 50},
		logging.NewNop(),
	)

	result, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(500), result.ScannedCount)
	assert.Equal(t, int64(20), result.CandidatesCreated)

	// Exactly the planted pairs surface, nothing else
	require.Len(t, f.candidates.created, 20)
	for _, cand := range f.candidates.created {
		assert.True(t, planted[[2]int64{cand.CompanyAID, cand.CompanyBID}],
			"unexpected pair (%d,%d)", cand.CompanyAID, cand.CompanyBID)
	}
}

func TestScanResumesFromCheckpoint(t *testing.T) {
	companies := []models.Company{
		company(1, "Alpha GmbH", "Berlin"),
		company(2, "Beta AG", "Hamburg"),
		company(3, "Gamma KG", "Munich"),
		company(4, "Delta GmbH", "Cologne"),
		company(5, "Epsilon UG", "Bremen"),
	}

	f := newScanFixture(companies, map[int64][]models.Company{}, 2)
	f.checkpoints.stored = &models.ScanCheckpoint{
		JobName:       JobName,
		LastCompanyID: 3,
		ScannedCount:  3,
		StartedAt:     time.Now().Add(-time.Hour),
	}

	result, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	// Only ids 4 and 5 are visited; totals continue from the checkpoint
	assert.Equal(t, int64(5), result.ScannedCount)
	assert.Equal(t, 1, f.db.commits)
}

func TestScanRejectsConcurrentRuns(t *testing.T) {
	f := newScanFixture(nil, nil, 10)

	f.scanner.mu.Lock()
	f.scanner.running = true
	f.scanner.mu.Unlock()

	_, err := f.scanner.Run(context.Background())
	assert.ErrorIs(t, err, ErrScanAlreadyRunning)
}

func TestScanHonorsCancellationAtBatchBoundary(t *testing.T) {
	f := newScanFixture([]models.Company{company(1, "Alpha GmbH", "Berlin")}, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scanner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// No completion side effects on a cancelled run
	assert.Equal(t, 0, f.emitter.completed)
	assert.Equal(t, 0, f.checkpoints.resets)
	assert.False(t, f.scanner.IsRunning())
}
