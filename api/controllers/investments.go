package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/investments"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

// CreateInvestment pledges funds to an active project.
func CreateInvestment(svc investments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "investments")
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

		var body investments.CreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		investment, err := svc.Create(r.Context(), actor, projectID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, investment)
	}
}

func ListProjectInvestments(svc investments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "investments")
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
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByProject(r.Context(), actor, projectID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}

func ListMyInvestments(svc investments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "investments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMine(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}
