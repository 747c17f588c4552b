// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package scheduler runs a job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/mia-platform/tabingest/internal/logger"
)

const (
	loggerName = "tabingest:scheduler"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Job is invoked at every activation of the schedule.
type Job func(ctx context.Context)

// Scheduler invokes a Job following a standard five fields cron expression or a descriptor like
// "@every 10m". An activation is skipped while the previous one is still running.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New returns a stopped Scheduler. The job receives ctx, that also carries the logger.
func New(ctx context.Context, schedule string, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	log := cronLogger{log: logger.FromContext(ctx).WithName(loggerName)}
	runner := cron.New(
		cron.WithLogger(log),
		cron.WithChain(
			cron.Recover(log),
			cron.SkipIfStillRunning(log),
		),
	)

	if _, err := runner.AddFunc(schedule, func() { job(ctx) }); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	return &Scheduler{cron: runner, ctx: ctx}, nil
}

// Start begins the activations in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new activations and waits for the running job to return or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger sends the cron events to the application logger.
type cronLogger struct {
	log logger.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
