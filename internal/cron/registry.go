package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in run order. Names are unique because metrics and
// logs are keyed by them.
type Registry struct {
	order  []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job %T has no name", job)
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, job)
	return nil
}

// Lookup finds a job by name, for one-off runs.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

// Jobs returns a copy of the run order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.order...)
}
