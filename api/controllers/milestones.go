package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/milestones"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

func projectAndMilestoneIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	projectID, err := validators.ParseURLUUID(r, "projectId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	milestoneID, err := validators.ParseURLUUID(r, "milestoneId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return projectID, milestoneID, nil
}

func ListMilestones(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
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

func AddMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
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

		var body milestones.AddRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Add(r.Context(), actor, projectID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, milestone)
	}
}

// ReweightMilestones replaces the weight split of a project's plan.
func ReweightMilestones(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
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

		var body milestones.ReweightRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.Reweight(r.Context(), actor, projectID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, milestoneID, err := projectAndMilestoneIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Get(r.Context(), actor, projectID, milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, milestone)
	}
}

func UpdateMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, milestoneID, err := projectAndMilestoneIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body milestones.UpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Update(r.Context(), actor, projectID, milestoneID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, milestone)
	}
}

func StartMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, milestoneID, err := projectAndMilestoneIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Start(r.Context(), actor, projectID, milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, milestone)
	}
}

// SubmitMilestone sends a milestone for verification with its evidence.
func SubmitMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		projectID, milestoneID, err := projectAndMilestoneIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body milestones.SubmitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Submit(r.Context(), actor, projectID, milestoneID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, milestone)
	}
}

// AdminDecideMilestone approves or rejects a milestone awaiting verification.
func AdminDecideMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.ParseURLUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body milestones.DecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Decide(r.Context(), actor, milestoneID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
