package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "senseled/internal/log"
)

// Cron starts jobs on standard 5-field cron specs ("*/15 * * * *") or
// descriptors ("@hourly", "@every 10m"). A job that is still running when
// its next slot comes up is skipped, so sessions never overlap.
type Cron struct {
	c *cron.Cron
}

// NewCron returns a stopped scheduler.
func NewCron() *Cron {
	l := appLog.CronLogger()
	return &Cron{
		c: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// ValidateSpec reports whether spec parses as a standard cron spec.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// Add registers job under spec.
func (c *Cron) Add(spec string, job func()) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	if _, err := c.c.AddFunc(spec, job); err != nil {
		return fmt.Errorf("scheduler: add %q: %w", spec, err)
	}
	return nil
}

// Len returns the number of registered jobs.
func (c *Cron) Len() int { return len(c.c.Entries()) }

// Run starts the scheduler, blocks until ctx is done, then waits for any
// running job to return.
func (c *Cron) Run(ctx context.Context) {
	c.c.Start()
	appLog.Info("cron scheduler started", "jobs", c.Len())

	<-ctx.Done()

	stopped := c.c.Stop()
	<-stopped.Done()
	appLog.Info("cron scheduler stopped")
}
