package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the terminal daemon.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with its cadence.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry tracks registered cron jobs.
type Registry struct {
	schedules []Schedule
}

// NewRegistry builds a registry preloaded with the provided schedules.
func NewRegistry(schedules ...Schedule) *Registry {
	registry := &Registry{}
	for _, s := range schedules {
		registry.Register(s.Job, s.Every)
	}
	return registry
}

// Register adds a job that runs every interval. Jobs with a nil value or a
// non-positive interval are ignored.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil || every <= 0 {
		return
	}
	r.schedules = append(r.schedules, Schedule{Job: job, Every: every})
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.schedules))
	for i, s := range r.schedules {
		jobs[i] = s.Job
	}
	return jobs
}

// Schedules returns a copy of the registered schedules.
func (r *Registry) Schedules() []Schedule {
	out := make([]Schedule, len(r.schedules))
	copy(out, r.schedules)
	return out
}

// shortest returns the smallest interval, or zero when empty.
func (r *Registry) shortest() time.Duration {
	var min time.Duration
	for _, s := range r.schedules {
		if min == 0 || s.Every < min {
			min = s.Every
		}
	}
	return min
}
