// Package scheduler runs EnrollBot's periodic maintenance jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Defaults for the idle conversation sweep.
const (
	DefaultSweepSpec = "*/15 * * * *"
	DefaultIdleTTL   = 24 * time.Hour
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// Opts holds scheduler configuration.
type Opts struct {
	Location *time.Location
}

// Option configures a Scheduler.
type Option func(*Opts)

// WithLocation evaluates cron expressions in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronOpts := []cron.Option{cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))}
	if cfg.Location != nil {
		cronOpts = append(cronOpts, cron.WithLocation(cfg.Location))
	}
	c := cron.New(cronOpts...)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweeper removes conversations idle since cutoff.
type Sweeper interface {
	SweepIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdleSweep returns a job that ends conversations not updated within ttl.
func IdleSweep(ctx context.Context, sweeper Sweeper, ttl time.Duration, now func() time.Time) func() {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return func() {
		cutoff := now().Add(-ttl)
		n, err := sweeper.SweepIdle(ctx, cutoff)
		if err != nil {
			slog.Error("Scheduler idle sweep failed", "error", err, "cutoff", cutoff)
			return
		}
		slog.Debug("Scheduler idle sweep completed", "removed", n, "cutoff", cutoff)
	}
}
