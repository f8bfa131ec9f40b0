package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
)

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(nil, nil, Config{PollInterval: 10 * time.Millisecond}, logging.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// A second start is rejected
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())

	// Stopping an already stopped scheduler is a no-op
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerDefaults(t *testing.T) {
	s := NewScheduler(nil, nil, Config{}, logging.NewNop())

	assert.Equal(t, DefaultPollInterval, s.config.PollInterval)
	assert.Equal(t, DefaultLockTTL, s.config.LockTTL)
}

func TestRunDueJobsSeedsFirstPoll(t *testing.T) {
	ran := false
	s := NewScheduler([]Job{{
		Name:     "job",
		Interval: time.Hour,
		Run:      func(ctx context.Context) error { ran = true; return nil },
	}}, nil, Config{}, logging.NewNop())

	// The first poll only seeds the clock so every replica does not
	// fire all jobs at boot.
	s.runDueJobs(context.Background())
	assert.False(t, ran)
	assert.Contains(t, s.lastRun, "job")

	// Not due yet afterwards either
	s.runDueJobs(context.Background())
	assert.False(t, ran)
}
