package merging

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"

	"github.com/jmoiron/sqlx"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
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
func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.IsOpen() {
		t.committed = true
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.IsOpen() {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
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
	d.tx = &fakeTx{}
	return ctx, d.tx, nil
}

func (d *fakeDB) PingContext(ctx context.Context) error { return nil }
func (d *fakeDB) Close() error                          { return nil }
func (d *fakeDB) SQLX() *sqlx.DB                        { return nil }

type memCompanies struct {
	db        *fakeDB
	companies map[int64]*models.Company
	updateErr error
	updated   []int64
}

func (m *memCompanies) DB() database.DB { return m.db }

func (m *memCompanies) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	company, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	clone := *company
	return &clone, nil
}

func (m *memCompanies) GetByIDForUpdate(ctx context.Context, id int64) (*models.Company, error) {
	return m.GetByID(ctx, id)
}

func (m *memCompanies) Update(ctx context.Context, company *models.Company) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	clone := *company
	m.companies[company.ID] = &clone
	m.updated = append(m.updated, company.ID)
	return nil
}

type memCandidates struct {
	confirmed [][2]int64
}

func (m *memCandidates) ConfirmOpenPair(ctx context.Context, companyAID, companyBID int64, reviewedBy, notes string) error {
	m.confirmed = append(m.confirmed, [2]int64{companyAID, companyBID})
	return nil
}

type memAudit struct {
	entries []*models.MergeAuditLog
	err     error
}

func (m *memAudit) Create(ctx context.Context, entry *models.MergeAuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

type memIndex struct {
	deleted []int64
}

func (m *memIndex) Delete(ctx context.Context, companyID int64) error {
	m.deleted = append(m.deleted, companyID)
	return nil
}

type memEmitter struct {
	merged int
}

func (m *memEmitter) EmitDuplicateMerged(ctx context.Context, primaryID, duplicateID int64, overallScore float64, mode, reviewedBy string) error {
	m.merged++
	return nil
}

type engineFixture struct {
	engine     *Engine
	db         *fakeDB
	companies  *memCompanies
	candidates *memCandidates
	audit      *memAudit
	index      *memIndex
	emitter    *memEmitter
}

func newEngineFixture(companies map[int64]*models.Company) *engineFixture {
	f := &engineFixture{
		db:         &fakeDB{},
		candidates: &memCandidates{},
		audit:      &memAudit{},
		index:      &memIndex{},
		emitter:    &memEmitter{},
	}
	f.companies = &memCompanies{db: f.db, companies: companies}
	f.engine = NewEngine(f.companies, f.candidates, f.audit, f.index, f.emitter, logging.NewNop())
	return f
}

func TestMergeFillsFieldsAndUnionsLists(t *testing.T) {
	f := newEngineFixture(map[int64]*models.Company{
		1: {
			ID: 1, Name: "Tech Solutions GmbH", City: "Berlin",
			Directors: models.StringList{"Anna Schmidt"},
			Sources:   models.StringList{"registry"},
			IsActive:  true,
		},
		2: {
			ID: 2, Name: "TechSolutions", Email: "info@techsolutions.de",
			Phone: "+49 30 12345678", City: "Berlin",
			Directors: models.StringList{"Anna Schmidt", "Jonas Weber"},
			Sources:   models.StringList{"crawler"},
			IsActive:  true,
		},
	})

	result, err := f.engine.Merge(context.Background(), &models.MergeRequest{
		PrimaryID:    1,
		DuplicateID:  2,
		OverallScore: 0.97,
		Mode:         models.MergeModeAuto,
		Actor:        "system",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	primary := f.companies.companies[1]
	// Empty primary fields are filled from the duplicate
	assert.Equal(t, "info@techsolutions.de", primary.Email)
	assert.Equal(t, "+49 30 12345678", primary.Phone)
	// Existing primary values are never overwritten
	assert.Equal(t, "Tech Solutions GmbH", primary.Name)
	// Lists union without duplicates
	assert.Equal(t, models.StringList{"Anna Schmidt", "Jonas Weber"}, primary.Directors)
	assert.Equal(t, models.StringList{"registry", "crawler"}, primary.Sources)

	duplicate := f.companies.companies[2]
	assert.True(t, duplicate.IsDuplicate)
	assert.False(t, duplicate.IsActive)
	require.NotNil(t, duplicate.DuplicateOfID)
	assert.Equal(t, int64(1), *duplicate.DuplicateOfID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.MergeModeAuto, f.audit.entries[0].Mode)
	assert.Equal(t, [2]int64{1, 2}, f.candidates.confirmed[0])
	assert.Equal(t, []int64{2}, f.index.deleted)
	assert.Equal(t, 1, f.emitter.merged)

	assert.True(t, f.db.tx.committed)
	assert.False(t, f.db.tx.rolledBack)
}

func TestMergeSelfIsRejected(t *testing.T) {
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "Acme", IsActive: true},
	})

	_, err := f.engine.Merge(context.Background(), &models.MergeRequest{PrimaryID: 1, DuplicateID: 1})
	require.Error(t, err)
	assert.Nil(t, f.db.tx)
}

func TestMergeResolvesPrimaryToRoot(t *testing.T) {
	rootID := int64(1)
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "Root GmbH", IsActive: true},
		2: {ID: 2, Name: "Old GmbH", IsDuplicate: true, DuplicateOfID: &rootID},
		3: {ID: 3, Name: "New GmbH", IsActive: true},
	})

	// Merging into an already-merged record lands on its root, so
	// chains never form.
	result, err := f.engine.Merge(context.Background(), &models.MergeRequest{
		PrimaryID:   2,
		DuplicateID: 3,
		Actor:       "reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Primary.ID)

	merged := f.companies.companies[3]
	require.NotNil(t, merged.DuplicateOfID)
	assert.Equal(t, int64(1), *merged.DuplicateOfID)

	// Both the resolved pair and the pair the request named are closed;
	// the candidate the reviewer acted on must not stay pending.
	assert.Contains(t, f.candidates.confirmed, [2]int64{1, 3})
	assert.Contains(t, f.candidates.confirmed, [2]int64{2, 3})
}

func TestMergeDirectPrimaryConfirmsPairOnce(t *testing.T) {
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "Root GmbH", IsActive: true},
		2: {ID: 2, Name: "Copy GmbH", IsActive: true},
	})

	_, err := f.engine.Merge(context.Background(), &models.MergeRequest{
		PrimaryID:   1,
		DuplicateID: 2,
		Actor:       "reviewer",
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]int64{{1, 2}}, f.candidates.confirmed)
}

func TestMergeCycleIsRejected(t *testing.T) {
	dupID := int64(2)
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "A GmbH", IsDuplicate: true, DuplicateOfID: &dupID},
		2: {ID: 2, Name: "B GmbH", IsActive: true},
	})

	_, err := f.engine.Merge(context.Background(), &models.MergeRequest{PrimaryID: 1, DuplicateID: 2})
	require.Error(t, err)
	assert.False(t, f.db.tx.committed)
	assert.True(t, f.db.tx.rolledBack)
}

func TestMergeAlreadyMergedDuplicateIsRejected(t *testing.T) {
	otherID := int64(7)
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "Primary GmbH", IsActive: true},
		2: {ID: 2, Name: "Dup GmbH", IsDuplicate: true, DuplicateOfID: &otherID},
		7: {ID: 7, Name: "Other GmbH", IsActive: true},
	})

	_, err := f.engine.Merge(context.Background(), &models.MergeRequest{PrimaryID: 1, DuplicateID: 2})
	require.Error(t, err)
	assert.True(t, f.db.tx.rolledBack)
	assert.Empty(t, f.audit.entries)
	assert.Equal(t, 0, f.emitter.merged)
}

func TestMergeRollsBackOnAuditFailure(t *testing.T) {
	f := newEngineFixture(map[int64]*models.Company{
		1: {ID: 1, Name: "Primary GmbH", IsActive: true},
		2: {ID: 2, Name: "Dup GmbH", IsActive: true},
	})
	f.audit.err = errors.New("insert failed")

	_, err := f.engine.Merge(context.Background(), &models.MergeRequest{PrimaryID: 1, DuplicateID: 2})
	require.Error(t, err)

	assert.True(t, f.db.tx.rolledBack)
	assert.False(t, f.db.tx.committed)
	assert.Equal(t, 0, f.emitter.merged)
}
