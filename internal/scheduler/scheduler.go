// Package scheduler runs gatherers on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"stockperf/internal/gather"
)

// parser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@daily".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler fires gatherers on cron schedules. A run that is still going when
// its next tick arrives causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// New creates a scheduler evaluating schedules in loc.
func New(loc *time.Location) *Scheduler {
	log := slog.Default().With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Validate reports whether schedule parses.
func Validate(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Add registers g on schedule.
//
// Schedule examples:
//   - "30 18 * * MON-FRI"  - 18:30 on weekdays
//   - "0 0 7 * * *"        - 07:00:00 daily
//   - "@every 6h"
func (s *Scheduler) Add(schedule string, g gather.Gatherer) error {
	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		s.log.Info("running job", "job", g.Name())
		if err := g.Run(s.ctx); err != nil {
			s.log.Error("job failed", "job", g.Name(), "error", err, "elapsed", time.Since(start))
			return
		}
		s.log.Info("job completed", "job", g.Name(), "elapsed", time.Since(start))
	})
	if err != nil {
		return err
	}
	s.log.Info("job registered", "job", g.Name(), "schedule", schedule)
	return nil
}

// Next returns the next activation time across all jobs, zero if none.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
