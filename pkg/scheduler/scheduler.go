// Package scheduler runs the periodic jobs (batch scan, retention
// cleanup) behind a distributed lock so only one replica fires each.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	// DefaultPollInterval is the default interval between scheduling runs
	DefaultPollInterval = 30 * time.Second

	// DefaultLockTTL is the default TTL for distributed job locks
	DefaultLockTTL = 10 * time.Minute

	// LockKeyPrefix is the prefix for job locks
	LockKeyPrefix = "scheduler:job:"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Config holds configuration for the scheduler
type Config struct {
	// PollInterval is how often to check whether jobs are due
	PollInterval time.Duration

	// LockTTL is how long a job lock is held
	LockTTL time.Duration
}

// Scheduler polls registered jobs and fires the ones that are due.
type Scheduler struct {
	jobs   []Job
	locker *redis.Locker
	config Config
	logger logging.Logger

	lastRun map[string]time.Time

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(jobs []Job, locker *redis.Locker, config Config, logger logging.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Scheduler{
		jobs:     jobs,
		locker:   locker,
		config:   config,
		logger:   logger,
		lastRun:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: poll_interval=%s jobs=%d",
		s.config.PollInterval, len(s.jobs))

	go s.pollLoop(ctx)

	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// pollLoop fires due jobs until stopped
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.runDueJobs(ctx)
		}
	}
}

// runDueJobs runs every job whose interval has elapsed
func (s *Scheduler) runDueJobs(ctx context.Context) {
	for _, job := range s.jobs {
		last, ok := s.lastRun[job.Name]
		if ok && time.Since(last) < job.Interval {
			continue
		}
		if !ok {
			// First poll seeds the clock; jobs fire one interval after
			// startup rather than in a thundering herd at boot.
			s.lastRun[job.Name] = time.Now()
			continue
		}

		s.runJob(ctx, job)
	}
}

// runJob runs one job while holding its distributed lock
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.runJob")
	defer span.End()

	// Mark the attempt even if another replica holds the lock, so this
	// replica does not retry every poll.
	s.lastRun[job.Name] = time.Now()

	err := s.locker.WithLock(ctx, LockKeyPrefix+job.Name, s.config.LockTTL, func() error {
		start := time.Now()
		s.logger.WithContext(ctx).WithField("job", job.Name).Info("Running scheduled job")

		if err := job.Run(ctx); err != nil {
			return err
		}

		s.logger.WithContext(ctx).WithFields(map[string]any{
			"job":      job.Name,
			"duration": time.Since(start).String(),
		}).Info("Scheduled job completed")
		return nil
	})

	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			s.logger.WithContext(ctx).WithField("job", job.Name).Debug("Job lock held elsewhere, skipping")
			return
		}
		s.logger.WithContext(ctx).WithError(err).WithField("job", job.Name).Error("Scheduled job failed")
	}
}
