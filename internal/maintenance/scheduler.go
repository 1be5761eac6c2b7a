// Package maintenance runs periodic housekeeping against the database.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
	"github.com/collabhub/collabhub/internal/storage"
)

// DefaultSchedule runs the purge jobs once an hour.
const DefaultSchedule = "@hourly"

// job is one named housekeeping task returning the number of rows it removed.
type job struct {
	name string
	kind string
	run  func(ctx context.Context) (int64, error)
}

// Scheduler purges expired refresh tokens and stale reset tokens on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	jobs     []job
	timeout  time.Duration
}

// NewScheduler creates a scheduler for store. An empty schedule means DefaultSchedule.
func NewScheduler(store storage.Storage, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	s := &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		timeout:  time.Minute,
		jobs: []job{
			{name: "purge_refresh_tokens", kind: "refresh_tokens", run: store.Tokens().DeleteExpired},
			{name: "purge_reset_tokens", kind: "reset_tokens", run: store.ResetTokens().DeleteStale},
		},
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce executes every job immediately and returns rows removed per kind.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]int64 {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	purged := make(map[string]int64, len(s.jobs))
	for _, j := range s.jobs {
		n, err := j.run(ctx)
		if err != nil {
			metrics.MaintenanceRunsTotal.WithLabelValues(j.name, "error").Inc()
			logger.Errorf("maintenance %s failed: %v", j.name, err)
			continue
		}
		metrics.MaintenanceRunsTotal.WithLabelValues(j.name, "success").Inc()
		metrics.MaintenancePurgedTotal.WithLabelValues(j.kind).Add(float64(n))
		purged[j.kind] = n
		if n > 0 {
			logger.Infof("maintenance %s: removed %d rows", j.name, n)
		}
	}
	return purged
}

// Run starts the cron loop and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Infof("maintenance scheduler started (%s)", s.schedule)
	s.cron.Start()

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(s.timeout):
		logger.Warnf("maintenance scheduler: timed out waiting for running jobs")
	}
	logger.Infof("maintenance scheduler stopped")
	return nil
}
