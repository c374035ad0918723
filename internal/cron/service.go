package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultInterval = time.Minute

// ServiceParams configure the scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
}

type entry struct {
	schedule Schedule
	lock     Lock
	trigger  chan struct{}
}

// Service runs each registered job on its own ticker. Runs of one job never
// overlap; a tick that lands while the previous run is active is skipped.
type Service struct {
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
	entries map[string]*entry
	order   []string
}

// NewService builds the scheduler and resolves a lock per job.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	locks := params.Locks
	if locks == nil {
		locks = LocalLocks()
	}
	s := &Service{
		logg:    params.Logger,
		metrics: params.Metrics,
		entries: make(map[string]*entry),
	}
	for _, schedule := range registry.Schedules() {
		name := schedule.Job.Name()
		if _, dup := s.entries[name]; dup {
			return nil, fmt.Errorf("job %q registered twice", name)
		}
		lock, err := locks(name)
		if err != nil {
			return nil, fmt.Errorf("lock for %s: %w", name, err)
		}
		s.entries[name] = &entry{
			schedule: schedule,
			lock:     lock,
			trigger:  make(chan struct{}, 1),
		}
		s.order = append(s.order, name)
	}
	return s, nil
}

// Trigger requests an immediate run of the named job. Requests coalesce while
// one is already pending. It reports false for unknown jobs.
func (s *Service) Trigger(name string) bool {
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
	return true
}

// Run starts every job loop and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithComponent(ctx, "scheduler")
	var wg sync.WaitGroup
	for _, name := range s.order {
		e := s.entries[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, e)
		}()
	}
	wg.Wait()
	s.logg.Info(ctx, "scheduler context canceled")
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.trigger:
		}
		if err := s.runOnce(ctx, e); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "job", e.schedule.Job.Name()), "scheduled run failed", err)
		}
	}
}

func (s *Service) runOnce(ctx context.Context, e *entry) (err error) {
	name := e.schedule.Job.Name()
	locked, err := e.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(s.logg.WithField(ctx, "job", name), "previous run still active; skipping")
		s.metrics.Skipped(name)
		return nil
	}
	defer func() {
		if relErr := e.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()
	s.runJob(ctx, e.schedule.Job)
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "scheduler.job")
	s.logg.Debug(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.Observe(job.Name(), duration, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Debug(jobCtx, "job completed")
}
