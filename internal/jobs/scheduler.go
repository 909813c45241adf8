/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	log      *zap.SugaredLogger
	schedule string
}

// NewScheduler creates a new scheduler instance. schedule is a standard five-field
// cron expression or a descriptor such as "@hourly".
func NewScheduler(jobs *Jobs, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(jobs.log.Desugar()))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		log:      jobs.log,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.PendingSettlementReport); err != nil {
		s.log.Errorw("failed to schedule pending settlement report job", "schedule", s.schedule, "err", err)
		return err
	}
	s.log.Infow("scheduled pending settlement report job", "schedule", s.schedule)

	s.cron.Start()
	return nil
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
