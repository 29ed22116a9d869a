package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/middleware"
	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/pkg/auth"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

// requireActor writes a 401 and reports false when the request carries no
// authenticated caller.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return auth.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", name))
}

// pageParams reads the limit and cursor query parameters shared by every
// cursor-paginated list.
func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}, nil
}
