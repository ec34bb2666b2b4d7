// Package scheduler runs the periodic session health sweep on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"camera-relay/internal/stream"
)

// Sweeper is the work the scheduler triggers.
type Sweeper interface {
	SweepAll(ctx context.Context) stream.SweepReport
}

// parser accepts standard five-field specs, an optional leading seconds
// field and descriptors such as "@every 30s".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler invokes a Sweeper on a cron schedule. A run that is still in
// progress when the next one is due causes that next run to be skipped.
type Scheduler struct {
	mu sync.Mutex

	sweeper  Sweeper
	schedule string
	logger   *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// New returns a scheduler for schedule. An empty schedule yields a
// scheduler whose Start does nothing.
func New(sweeper Sweeper, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if schedule != "" {
		if _, err := parser.Parse(schedule); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger.With(slog.String("component", "scheduler")),
	}, nil
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.schedule != ""
}

// Start begins running sweeps. Sweeps receive a context derived from ctx
// that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("health sweep schedule disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.schedule, func() { s.sweeper.SweepAll(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("scheduling sweep: %w", err)
	}

	s.cron, s.cancel = c, cancel
	c.Start()

	s.logger.Info("scheduler started", slog.String("schedule", s.schedule))
	return nil
}

// Stop cancels any running sweep and waits for it to return. It is safe to
// call on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
}

// cronLogger routes cron's own logging into slog. Routine scheduling noise
// goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
