package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mjf789/spam-news/internal/ports"
)

// Scheduler re-runs the pipeline on every tick of the driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the driver. Run failures are logged;
// the schedule keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		rep, err := s.pipeline.Run(ctx)
		switch {
		case err == nil:
			s.logger.Info("scheduled run done", "run", rep.Run.ID, "trigger", trigger, "tallied", rep.Run.Tallied)
		case errors.Is(err, context.Canceled):
			s.logger.Info("scheduled run canceled", "run", rep.Run.ID)
		default:
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
