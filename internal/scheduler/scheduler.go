// Package scheduler runs the periodic background jobs: the SLA scan, the
// cluster detector and the daily briefing.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicflow/civicflow/internal/util"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 10 * time.Minute

// Job is a named unit of periodic work.
type Job struct {
	Name string
	// Next returns the first run time strictly after now.
	Next func(now time.Time) time.Time
	Run  func(ctx context.Context) error
}

// Every schedules a job at a fixed interval.
func Every(d time.Duration) func(time.Time) time.Time {
	return func(now time.Time) time.Time { return now.Add(d) }
}

// DailyAt schedules a job once a day at the given hour in loc.
func DailyAt(hour int, loc *time.Location) func(time.Time) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) time.Time { return util.NextAt(now.In(loc), hour) }
}

// Scheduler runs jobs until its context is cancelled. A failing run is
// logged and the job is scheduled again.
type Scheduler struct {
	jobs   []Job
	clock  util.Clock
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock jobs are scheduled against.
func WithClock(c util.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: util.SystemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

// Run blocks until ctx is cancelled and every job loop has returned.
// A run in progress finishes before its loop exits.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Next == nil || job.Run == nil {
			return fmt.Errorf("job %q: schedule and run function are required", job.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	s.logger.Info("scheduler started", "jobs", s.Jobs())
	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.clock.Now()
		next := job.Next(now)
		timer := time.NewTimer(max(next.Sub(now), 0))
		s.logger.Debug("job scheduled", "job", job.Name, "at", next)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runOnce(ctx, job)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	// Runs are not interrupted mid-transaction by shutdown.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
		}
	}()
	if err := job.Run(runCtx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}
