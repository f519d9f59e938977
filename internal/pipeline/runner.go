package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"
)

// Stage is one step of complaint processing.
//
// A stage signals a complaint-level problem through Context.Fail or
// Context.Reject. A returned error is a fault in the stage itself.
type Stage interface {
	Name() string
	Process(ctx context.Context, pc *Context) error
}

// Checkpoint persists progress after a stage. An error from the
// checkpoint is recorded against the stage and halts the run.
type Checkpoint func(ctx context.Context, pc *Context, stage string) error

// StageReport is the outcome of one executed stage.
type StageReport struct {
	Stage    string
	Duration time.Duration
	Err      error
}

// Report summarises a run.
type Report struct {
	Stages   []StageReport
	Halted   bool
	Duration time.Duration
}

// Runner executes a fixed, ordered list of stages. It holds no per-run
// state, so one Runner serves any number of concurrent runs.
type Runner struct {
	stages     []Stage
	checkpoint Checkpoint
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCheckpoint installs a hook that runs after every stage that did not
// fault.
func WithCheckpoint(cp Checkpoint) Option {
	return func(r *Runner) { r.checkpoint = cp }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner over stages, executed in the given order.
func NewRunner(stages []Stage, opts ...Option) *Runner {
	r := &Runner{stages: stages, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stages returns the stage names in execution order.
func (r *Runner) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}

// Run processes pc through every stage until one faults or records an
// error. Side effects of completed stages are not rolled back.
func (r *Runner) Run(ctx context.Context, pc *Context) *Report {
	log := r.logger.With("complaint", pc.Complaint.ID, "tracking_code", pc.Complaint.TrackingCode)
	log.Info("pipeline: starting")

	start := time.Now()
	report := &Report{}

	for _, stage := range r.stages {
		stageStart := time.Now()
		err := r.runStage(ctx, stage, pc)
		if err == nil && r.checkpoint != nil {
			if cpErr := r.checkpoint(ctx, pc, stage.Name()); cpErr != nil {
				err = eris.Wrap(cpErr, "checkpoint")
			}
		}
		elapsed := time.Since(stageStart)
		report.Stages = append(report.Stages, StageReport{Stage: stage.Name(), Duration: elapsed, Err: err})

		if err != nil {
			pc.Fail(fmt.Sprintf("%s: %v", stage.Name(), err))
			log.Error("pipeline: stage failed", "stage", stage.Name(), "duration_ms", elapsed.Milliseconds(), "error", err)
			report.Halted = true
			break
		}
		log.Debug("pipeline: stage complete", "stage", stage.Name(), "duration_ms", elapsed.Milliseconds(), "status", pc.Status())

		if pc.Failed() {
			log.Info("pipeline: halted", "stage", stage.Name(), "errors", pc.Errors)
			report.Halted = true
			break
		}
	}

	report.Duration = time.Since(start)
	log.Info("pipeline: finished",
		"status", pc.Status(),
		"halted", report.Halted,
		"duration_ms", report.Duration.Milliseconds())
	return report
}

// runStage calls the stage and converts a panic into an error.
func (r *Runner) runStage(ctx context.Context, stage Stage, pc *Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("panic: %v", p)
		}
	}()
	return stage.Process(ctx, pc)
}
