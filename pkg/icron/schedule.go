// Package icron wraps robfig/cron for the periodic maintenance jobs.
package icron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Plan describes a standard five-field (or descriptor) cron expression
// relative to a reference time.
type Plan struct {
	Expression    string
	Next          time.Time
	TimeUntilNext time.Duration
}

// Describe parses expr and reports its next run after ref.
func Describe(expr string, ref time.Time) (*Plan, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	next := schedule.Next(ref)
	return &Plan{
		Expression:    expr,
		Next:          next,
		TimeUntilNext: next.Sub(ref),
	}, nil
}

// Job is a scheduled function; the context is cancelled by Stop.
type Job func(ctx context.Context)

// Runner runs one job on a cron schedule.
type Runner struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// Start schedules job on expr. Runs never overlap; a run that is still busy
// when the next one is due is skipped.
func Start(expr string, job Job) (*Runner, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.AddFunc(expr, func() { job(ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	c.Start()
	return &Runner{cron: c, ctx: ctx, cancel: cancel}, nil
}

// RunNow executes the job once outside the schedule.
func (r *Runner) RunNow(job Job) {
	job(r.ctx)
}

// Stop cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
}
