package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"

	"github.com/srms-platform/srms-backend/pkg/lock"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     lock.Lock
	Metrics  *metrics.CronMetrics
	Interval time.Duration
	// JobTimeout bounds each job; zero means the interval.
	JobTimeout time.Duration
}

// Service runs the registered maintenance jobs once per interval. Only the
// replica holding Lock runs a cycle; the others skip it.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       lock.Lock
	metrics    *metrics.CronMetrics
	interval   time.Duration
	jobTimeout time.Duration
	clock      func() time.Time
}

// cycleResult summarizes one tick. err joins the errors of failed jobs.
type cycleResult struct {
	ran    bool
	failed []string
	err    error
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
		clock:      time.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	return s, nil
}

// Run starts a cycle right away and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	res, err := s.runCycle(ctx)
	switch {
	case err != nil:
		s.logg.Error(ctx, "cron.cycle_failed", err)
	case !res.ran:
		s.logg.Info(ctx, "cron.cycle_skipped")
	case res.err != nil:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"failed_jobs":   res.failed,
			"error_message": res.err.Error(),
		}), "cron.cycle_complete")
	default:
		s.logg.Info(ctx, "cron.cycle_complete")
	}
}

// runCycle takes the lock and runs every job in order. Only a lock failure
// is returned as an error; job failures are collected in the result.
func (s *Service) runCycle(ctx context.Context) (cycleResult, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycleResult{}, fmt.Errorf("lock acquire: %w", err)
	}
	s.metrics.Cycle(locked)
	if !locked {
		return cycleResult{}, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	res := cycleResult{ran: true}
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			res.failed = append(res.failed, job.Name())
			res.err = multierr.Append(res.err, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return res, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	started := s.clock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
		finished := s.clock()
		took := finished.Sub(started)
		s.metrics.JobFinished(job.Name(), took, finished, err)
		ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
		if err != nil {
			s.logg.Error(ctx, "cron.job_failed", err)
			return
		}
		s.logg.Info(ctx, "cron.job_complete")
	}()
	return job.Run(jobCtx)
}
