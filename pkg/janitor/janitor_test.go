package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeCandidates struct {
	rows    map[string][]time.Time
	deleted []string
}

func (f *fakeCandidates) DeleteAgedByStatus(ctx context.Context, status string, olderThan time.Time) (int64, error) {
	f.deleted = append(f.deleted, status)

	var n int64
	kept := f.rows[status][:0]
	for _, createdAt := range f.rows[status] {
		if createdAt.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, createdAt)
	}
	f.rows[status] = kept
	return n, nil
}

func TestRunDeletesAgedRejected(t *testing.T) {
	now := time.Now()
	store := &fakeCandidates{rows: map[string][]time.Time{
		models.CandidateStatusRejected: {
			now.AddDate(0, 0, -91), // aged out
			now.AddDate(0, 0, -10), // still in the window
		},
		models.CandidateStatusConfirmed: {
			now.AddDate(0, 0, -200),
		},
	}}

	j := New(store, Config{RetentionDays: 90}, logging.NewNop())

	deleted, err := j.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.rows[models.CandidateStatusRejected], 1)

	// Confirmed candidates are untouched unless opted in
	assert.Equal(t, []string{models.CandidateStatusRejected}, store.deleted)
	assert.Len(t, store.rows[models.CandidateStatusConfirmed], 1)
}

func TestRunDeletesConfirmedWhenEnabled(t *testing.T) {
	now := time.Now()
	store := &fakeCandidates{rows: map[string][]time.Time{
		models.CandidateStatusRejected: {
			now.AddDate(0, 0, -100),
		},
		models.CandidateStatusConfirmed: {
			now.AddDate(0, 0, -100),
			now.AddDate(0, 0, -5),
		},
	}}

	j := New(store, Config{RetentionDays: 90, DeleteConfirmed: true}, logging.NewNop())

	deleted, err := j.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, []string{models.CandidateStatusRejected, models.CandidateStatusConfirmed}, store.deleted)
	assert.Len(t, store.rows[models.CandidateStatusConfirmed], 1)
}

func TestRunNeverTouchesPending(t *testing.T) {
	store := &fakeCandidates{rows: map[string][]time.Time{}}

	j := New(store, Config{RetentionDays: 90, DeleteConfirmed: true}, logging.NewNop())

	_, err := j.Run(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, store.deleted, models.CandidateStatusPending)
}
