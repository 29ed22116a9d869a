package controllers

import (
	"net/http"

	"github.com/innocapforge/forge-backend/api/responses"
	"github.com/innocapforge/forge-backend/api/validators"
	"github.com/innocapforge/forge-backend/internal/messages"
	"github.com/innocapforge/forge-backend/pkg/logger"
)

func messageListParams(r *http.Request) (messages.ListParams, error) {
	page, err := pageParams(r)
	if err != nil {
		return messages.ListParams{}, err
	}
	unread, err := validators.ParseQueryBool(r, "unread_only")
	if err != nil {
		return messages.ListParams{}, err
	}
	return messages.ListParams{Limit: page.Limit, Cursor: page.Cursor, UnreadOnly: unread}, nil
}

// ListInbox returns messages received by the caller, newest first.
func ListInbox(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "messages")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := messageListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.Inbox(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}

func SendMessage(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "messages")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body messages.SendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.Send(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

// ListConversation returns both directions of the thread with another user.
func ListConversation(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "messages")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		otherID, err := validators.ParseURLUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := messageListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.Conversation(r.Context(), actor, otherID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, page.Items, page.NextCursor)
	}
}

func MarkMessageRead(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "messages")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		messageID, err := validators.ParseURLUUID(r, "messageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), actor, messageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}
