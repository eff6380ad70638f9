package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled maintenance. Name must be unique within a
// Registry; it labels logs and metrics.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs, skipping nils. It panics on a duplicate name
// since that is a wiring bug.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if _, dup := r.names[job.Name()]; dup {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Only returns a registry narrowed to the named jobs.
func (r *Registry) Only(names ...string) (*Registry, error) {
	narrowed := NewRegistry()
	for _, name := range names {
		found := false
		for _, job := range r.jobs {
			if job.Name() == name {
				found = true
				if err := narrowed.Register(job); err != nil {
					return nil, err
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
	}
	return narrowed, nil
}
