package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/escrow"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

// AdminReleaseFunds moves a milestone's funding from escrow to the owner.
// Repeating the call for an already paid milestone returns the original payment.
func AdminReleaseFunds(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "escrow")
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

		var body escrow.ReleaseRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Release(r.Context(), actor, milestoneID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ListEscrowTransactions(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "escrow")
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

// ListWalletTransactions pages through the caller's wallet ledger.
func ListWalletTransactions(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "escrow")
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

		page, err := svc.ListWallet(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}
