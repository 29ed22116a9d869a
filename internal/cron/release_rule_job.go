package cron

import (
	"context"
	"fmt"

	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

type ReleaseRuleJobParams struct {
	Logger *logger.Logger
	Rules  ruleRunner
}

type ruleRunner interface {
	RunActive(ctx context.Context) (*rules.RunSummary, error)
}

func NewReleaseRuleJob(params ReleaseRuleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Rules == nil {
		return nil, fmt.Errorf("rules service required")
	}
	return &releaseRuleJob{logg: params.Logger, rules: params.Rules}, nil
}

// releaseRuleJob evaluates every active release rule once per cycle.
type releaseRuleJob struct {
	logg  *logger.Logger
	rules ruleRunner
}

func (j *releaseRuleJob) Name() string { return "release-rules" }

func (j *releaseRuleJob) Run(ctx context.Context) error {
	summary, err := j.rules.RunActive(ctx)
	if summary != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"evaluated": summary.Evaluated,
			"triggered": summary.Triggered,
			"failed":    summary.Failed,
		})
		j.logg.Info(logCtx, "release rule evaluation complete")
	}
	if err != nil {
		return fmt.Errorf("release rules: %w", err)
	}
	return nil
}
