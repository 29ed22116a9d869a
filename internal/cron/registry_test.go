package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndRejectsDuplicates(t *testing.T) {
	jobA := &stubJob{name: "release-rule-evaluation"}
	jobB := &stubJob{name: "notification-cleanup"}
	registry := NewRegistry(jobA, nil)
	assert.True(t, registry.Register(jobB))
	assert.False(t, registry.Register(&stubJob{name: "notification-cleanup"}))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")

	found, ok := registry.Lookup("notification-cleanup")
	require.True(t, ok)
	assert.Same(t, jobB, found)
	_, ok = registry.Lookup("order-ttl")
	assert.False(t, ok)
}
