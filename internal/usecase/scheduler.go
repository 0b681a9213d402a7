package usecase

import (
	"context"
	"log/slog"
	"time"

	"ResellBot/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	mode     Mode
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, mode Mode, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, mode: mode, logger: logger}
}

// Start registers the pipeline with the provided scheduler. A failing run is
// logged and the next tick runs again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if ctx.Err() != nil {
			return
		}
		if s.logger != nil {
			s.logger.Info("scheduled run", "trigger", trigger.Format(time.RFC3339))
		}
		_, _ = s.pipeline.Run(ctx, s.mode)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
