// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// TickJob is a periodic maintenance job. Each Tick processes one round.
type TickJob interface {
	Tick(ctx context.Context) error
}

// TickFunc adapts a plain function to TickJob.
type TickFunc func(ctx context.Context) error

// Tick implements TickJob.
func (f TickFunc) Tick(ctx context.Context) error { return f(ctx) }

// Default cadences. JobsConfig overrides the first four; the rest are fixed.
const (
	defaultHealthCheckInterval     = 10 * time.Second
	defaultUsageCollectionInterval = 10 * time.Second
	defaultAggregationInterval     = 60 * time.Second
	defaultReviewInterval          = 30 * time.Second

	periodicResetInterval   = time.Hour
	autoDeleteInterval      = 6 * time.Hour
	reminderSweepInterval   = 2 * time.Hour
	bandwidthSampleInterval = 2 * time.Second
)

// Manager owns the gocron scheduler and the registration of every
// background job in the panel.
type Manager struct {
	scheduler gocron.Scheduler
	cfg       config.JobsConfig
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewManager creates a Manager. gocron runs in the business timezone so
// cron expressions, if ever added, stay predictable.
func NewManager(cfg config.JobsConfig, log logger.Interface) (*Manager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log,
	}, nil
}

// RegisterHealthCheck registers the node probe loop.
func (m *Manager) RegisterHealthCheck(job TickJob) error {
	if m.cfg.DisableHealthCheck {
		m.logger.Infow("health check job disabled")
		return nil
	}
	return m.register("node-health-check", interval(m.cfg.HealthCheckSeconds, defaultHealthCheckInterval), time.Minute, job)
}

// RegisterUsageCollection registers per-node traffic collection.
func (m *Manager) RegisterUsageCollection(job TickJob) error {
	if m.cfg.DisableUsageCollection {
		m.logger.Infow("usage collection job disabled")
		return nil
	}
	return m.register("usage-collection", interval(m.cfg.UsageCollectionSeconds, defaultUsageCollectionInterval), time.Minute, job)
}

// RegisterAggregation registers the hourly bucket roll-up.
func (m *Manager) RegisterAggregation(job TickJob) error {
	if m.cfg.DisableUsageCollection {
		// Aggregation consumes collection output; no point running alone.
		return nil
	}
	return m.register("usage-aggregation", interval(m.cfg.AggregationSeconds, defaultAggregationInterval), time.Minute, job)
}

// RegisterReview registers the user status review loop.
func (m *Manager) RegisterReview(job TickJob) error {
	if m.cfg.DisableReview {
		m.logger.Infow("review job disabled")
		return nil
	}
	return m.register("user-review", interval(m.cfg.ReviewSeconds, defaultReviewInterval), 5*time.Minute, job)
}

// RegisterPeriodicReset registers the usage reset sweep.
func (m *Manager) RegisterPeriodicReset(job TickJob) error {
	if m.cfg.DisablePeriodicReset {
		m.logger.Infow("periodic reset job disabled")
		return nil
	}
	return m.register("periodic-reset", periodicResetInterval, 10*time.Minute, job)
}

// RegisterAutoDelete registers the terminal-user cleanup sweep.
func (m *Manager) RegisterAutoDelete(job TickJob) error {
	if m.cfg.DisableAutoDelete {
		m.logger.Infow("auto delete job disabled")
		return nil
	}
	return m.register("auto-delete", autoDeleteInterval, 10*time.Minute, job)
}

// RegisterReminderSweep registers expired reminder eviction.
func (m *Manager) RegisterReminderSweep(job TickJob) error {
	if m.cfg.DisableReminderSweep {
		m.logger.Infow("reminder sweep job disabled")
		return nil
	}
	return m.register("reminder-sweep", reminderSweepInterval, 5*time.Minute, job)
}

// RegisterBandwidthSample registers panel host bandwidth sampling.
func (m *Manager) RegisterBandwidthSample(job TickJob) error {
	if m.cfg.DisableBandwidthSample {
		return nil
	}
	return m.register("bandwidth-sample", bandwidthSampleInterval, 10*time.Second, job)
}

func (m *Manager) register(name string, every, timeout time.Duration, job TickJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			m.run(ctx, name, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered job", "name", name, "interval", every)
	return nil
}

func (m *Manager) run(ctx context.Context, name string, job TickJob) {
	startTime := biztime.NowUTC()
	if err := job.Tick(ctx); err != nil {
		// Context cancellation means shutdown, not failure.
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("job tick failed",
			"name", name,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}
	m.logger.Debugw("job tick completed", "name", name, "duration", time.Since(startTime))
}

func interval(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// Start starts the scheduler and all registered jobs.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler stopped")
	return nil
}

// IsStarted reports whether the scheduler is running.
func (m *Manager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *Manager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
