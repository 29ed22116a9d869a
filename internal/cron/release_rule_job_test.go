package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

type stubRuleRunner struct {
	summary *rules.RunSummary
	err     error
	calls   int
}

func (s *stubRuleRunner) RunActive(context.Context) (*rules.RunSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestReleaseRuleJobRunsActiveRules(t *testing.T) {
	runner := &stubRuleRunner{summary: &rules.RunSummary{Evaluated: 3, Triggered: 1, Fired: []uuid.UUID{uuid.New()}}}
	job, err := NewReleaseRuleJob(ReleaseRuleJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Rules:  runner,
	})
	require.NoError(t, err)
	assert.Equal(t, "release-rules", job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)
}

func TestReleaseRuleJobReportsPartialFailure(t *testing.T) {
	runner := &stubRuleRunner{
		summary: &rules.RunSummary{Evaluated: 2, Failed: 1},
		err:     errors.New("rule failed"),
	}
	job, err := NewReleaseRuleJob(ReleaseRuleJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Rules:  runner,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule failed")
}

func TestReleaseRuleJobRequiresRunner(t *testing.T) {
	_, err := NewReleaseRuleJob(ReleaseRuleJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	assert.Error(t, err)
}
