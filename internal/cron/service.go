// Package cron runs periodic maintenance jobs under a distributed lock so
// only one cron-worker replica works a cycle at a time.
package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

const (
	defaultInterval   = 24 * time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// jobRecorder is satisfied by *metrics.CronJobMetrics.
type jobRecorder interface {
	Observe(job string, took time.Duration, err error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobRecorder
	// Interval between cycles; 24h when unset.
	Interval time.Duration
	// JobTimeout bounds each job; 10m when unset.
	JobTimeout time.Duration
}

type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    jobRecorder
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run executes a cycle immediately and then once per interval until ctx is
// cancelled. Cycle failures are logged, never fatal.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes every job once if the lock can be taken. A held lock is
// not an error. Job failures are collected and do not stop later jobs.
func (s *Service) RunOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	var errs error
	for _, job := range s.registry.Jobs() {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.jobTimeout)
	defer cancel()

	started := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(started)
	if s.metrics != nil {
		s.metrics.Observe(name, took, err)
	}

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return &JobError{Job: name, Err: err}
	}
	s.logg.Info(jobCtx, "cron job finished")
	return nil
}

// JobError names the job that failed.
type JobError struct {
	Job string
	Err error
}

func (e *JobError) Error() string { return e.Job + ": " + e.Err.Error() }
func (e *JobError) Unwrap() error { return e.Err }
