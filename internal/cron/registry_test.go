package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string            { return string(n) }
func (namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	reg, err := NewRegistry(namedJob("retention"), namedJob("cleanup"))
	require.NoError(t, err)
	require.NoError(t, reg.Register(namedJob("reconcile")))

	jobs := reg.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "retention", jobs[0].Name())
	assert.Equal(t, "reconcile", jobs[2].Name())

	jobs[0] = nil
	assert.NotNil(t, reg.Jobs()[0])

	job, ok := reg.Lookup("cleanup")
	require.True(t, ok)
	assert.Equal(t, "cleanup", job.Name())
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	_, err := NewRegistry(namedJob("a"), namedJob("a"))
	assert.Error(t, err)

	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(namedJob("")))
}
