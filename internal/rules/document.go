package rules

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/innocapforge/forge-backend/pkg/auth"
)

// Document is the YAML form used to keep release rules in version control:
//
//	rules:
//	  - project_id: 4b1f...
//	    name: Release phase one
//	    conditions:
//	      - type: milestone_completed
//	        milestone_id: 9c2e...
//	    actions:
//	      - type: release_funds
//	        milestone_id: 9c2e...
type Document struct {
	Rules []DocumentRule `yaml:"rules"`
}

type DocumentRule struct {
	ProjectID   uuid.UUID `yaml:"project_id"`
	RuleRequest `yaml:",inline"`
}

// ParseDocument decodes a rules document. Unknown keys are rejected so typos
// in parameter names do not silently disable a condition.
func ParseDocument(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rules document is empty")
		}
		return nil, fmt.Errorf("decode rules document: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rules document has no rules")
	}
	return &doc, nil
}

// ValidateDocument validates every rule and reports all failures.
func ValidateDocument(ctx context.Context, svc Service, doc *Document) error {
	var errs error
	for i, rule := range doc.Rules {
		if err := svc.Validate(ctx, rule.ProjectID, rule.RuleRequest); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rules[%d] %q: %w", i, rule.Name, err))
		}
	}
	return errs
}

// ImportDocument validates the whole document first and then creates every
// rule. Nothing is written when any rule is invalid.
func ImportDocument(ctx context.Context, svc Service, actor auth.Actor, doc *Document) ([]RuleDTO, error) {
	if err := ValidateDocument(ctx, svc, doc); err != nil {
		return nil, err
	}
	created := make([]RuleDTO, 0, len(doc.Rules))
	for i, rule := range doc.Rules {
		dto, err := svc.Create(ctx, actor, rule.ProjectID, rule.RuleRequest)
		if err != nil {
			return created, fmt.Errorf("rules[%d] %q: %w", i, rule.Name, err)
		}
		created = append(created, *dto)
	}
	return created, nil
}
