package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/rules"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

func AdminListReleaseRules(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByProject(r.Context(), actor, projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AdminCreateReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, err := validators.ParseURLUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rules.RuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Create(r.Context(), actor, projectID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rule)
	}
}

func AdminGetReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		ruleID, err := validators.ParseURLUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Get(r.Context(), actor, ruleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rule)
	}
}

// AdminReplaceReleaseRule swaps a rule's whole definition.
func AdminReplaceReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		ruleID, err := validators.ParseURLUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rules.RuleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Replace(r.Context(), actor, ruleID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rule)
	}
}

// AdminToggleReleaseRule turns a rule on or off.
func AdminToggleReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		ruleID, err := validators.ParseURLUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rules.ToggleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.SetActive(r.Context(), actor, ruleID, *body.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rule)
	}
}

func AdminDeleteReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		ruleID, err := validators.ParseURLUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, ruleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminEvaluateReleaseRule dry-runs a rule against the current project state.
func AdminEvaluateReleaseRule(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		ruleID, err := validators.ParseURLUUID(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Evaluate(r.Context(), actor, ruleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminRunReleaseRules runs every active rule now instead of waiting for cron.
// Per-rule failures are reported in the summary rather than failing the call.
func AdminRunReleaseRules(svc rules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "release rules")
			return
		}
		if _, ok := requireActor(w, r, logg); !ok {
			return
		}

		summary, err := svc.RunActive(r.Context())
		if summary == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "failed", summary.Failed), "release_rules.run_partial_failure")
		}
		responses.WriteSuccess(w, summary)
	}
}
