// Package jobs runs the scheduled maintenance work: purging expired
// invitations and refreshing the tenant population gauges.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teambase/teambase/internal/metrics"
	"github.com/teambase/teambase/internal/storage"
	"github.com/teambase/teambase/pkg/logger"
)

const (
	// CleanupSchedule purges expired invitations nightly.
	CleanupSchedule = "0 3 * * *"
	// MetricsSchedule refreshes the population gauges every five minutes.
	MetricsSchedule = "*/5 * * * *"

	jobTimeout = 2 * time.Minute
)

// Scheduler owns the cron runner and the job implementations.
type Scheduler struct {
	cron        *cron.Cron
	invitations storage.InvitationStore
	stats       storage.StatsStore
	logger      *logger.Logger

	cleanupRuns atomic.Int64
	metricsRuns atomic.Int64
}

// NewScheduler builds the scheduler; Start registers and starts the jobs.
func NewScheduler(invitations storage.InvitationStore, stats storage.StatsStore, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	return &Scheduler{
		cron:        cron.New(),
		invitations: invitations,
		stats:       stats,
		logger:      log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(CleanupSchedule, s.runCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(MetricsSchedule, s.runMetrics); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("job scheduler started")
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("job scheduler stopped")
}

// CleanupRuns reports how many times the cleanup job has executed.
func (s *Scheduler) CleanupRuns() int64 { return s.cleanupRuns.Load() }

// MetricsRuns reports how many times the metrics job has executed.
func (s *Scheduler) MetricsRuns() int64 { return s.metricsRuns.Load() }

func (s *Scheduler) runCleanup() {
	s.cleanupRuns.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	removed, err := s.RunCleanup(ctx)
	metrics.RecordJobRun("invitation_cleanup", time.Since(start), err == nil)
	if err != nil {
		s.logger.WithError(err).Error("invitation cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("expired invitations purged")
	}
}

// RunCleanup deletes invitations whose expiry has passed and returns how
// many were removed. Exposed so operators can trigger it out of schedule.
func (s *Scheduler) RunCleanup(ctx context.Context) (int, error) {
	removed, err := s.invitations.DeleteExpiredInvitations(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	metrics.RecordInvitationsPurged(removed)
	return removed, nil
}

func (s *Scheduler) runMetrics() {
	s.metricsRuns.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	err := s.RunMetricsRefresh(ctx)
	metrics.RecordJobRun("metrics_refresh", time.Since(start), err == nil)
	if err != nil {
		s.logger.WithError(err).Error("metrics refresh failed")
	}
}

// RunMetricsRefresh recomputes the tenant population gauges.
func (s *Scheduler) RunMetricsRefresh(ctx context.Context) error {
	teams, err := s.stats.CountTeams(ctx)
	if err != nil {
		return err
	}
	members, err := s.stats.CountAllMembers(ctx)
	if err != nil {
		return err
	}
	pending, err := s.stats.CountPendingInvitations(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	metrics.SetTenantGauges(teams, members, pending)
	return nil
}
