package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/verifications"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

// ListVerifications returns a milestone's verifications with the rating aggregate.
func ListVerifications(svc verifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "verifications")
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

		result, err := svc.ListByMilestone(r.Context(), actor, milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CreateVerification(svc verifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "verifications")
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

		var body verifications.CreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verification, err := svc.Create(r.Context(), actor, milestoneID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, verification)
	}
}
