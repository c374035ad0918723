package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task run by the scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule binds a job to its tick interval.
type Schedule struct {
	Job      Job
	Interval time.Duration
}

// Registry tracks registered schedules.
type Registry struct {
	schedules []Schedule
}

// NewRegistry builds a registry preloaded with the provided schedules.
func NewRegistry(schedules ...Schedule) *Registry {
	registry := &Registry{}
	for _, schedule := range schedules {
		registry.Register(schedule.Job, schedule.Interval)
	}
	return registry
}

// Register adds a job; a non-positive interval falls back to the default.
func (r *Registry) Register(job Job, interval time.Duration) {
	if job == nil {
		return
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	r.schedules = append(r.schedules, Schedule{Job: job, Interval: interval})
}

// Schedules returns the registered schedules in the order they were added.
func (r *Registry) Schedules() []Schedule {
	schedules := make([]Schedule, len(r.schedules))
	copy(schedules, r.schedules)
	return schedules
}
