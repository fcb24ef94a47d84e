package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name string
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	expiry := &namedJob{name: "order-ttl"}
	cleanup := &namedJob{name: "dlq-report"}

	registry := NewRegistry(expiry)
	registry.Register(cleanup)
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name() != "order-ttl" || jobs[1].Name() != "dlq-report" {
		t.Fatalf("jobs out of order: %s, %s", jobs[0].Name(), jobs[1].Name())
	}

	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("Jobs must return a copy")
	}
}
