package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/nekonik/registry/internal/api/middleware"
	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/apikey"
	"github.com/nekonik/registry/internal/apperr"
)

// Keys is the API key service the key handlers depend on.
type Keys interface {
	Create(ctx context.Context, userID uuid.UUID, in apikey.Input) (*apikey.Created, error)
	List(ctx context.Context, userID uuid.UUID, page, limit int) ([]apikey.Entry, int, error)
	Edit(ctx context.Context, userID, keyID uuid.UUID, in apikey.Input) error
	Delete(ctx context.Context, userID, keyID uuid.UUID) error
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/api-keys.
// The response is the only time the secret is shown.
func NewCreateKeyHandler(keys Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		var in apikey.Input
		if err := decodeJSON(w, r, &in); err != nil {
			response.FromError(w, r, err)
			return
		}

		created, err := keys.Create(r.Context(), sess.UserID, in)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.Created(w, created)
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/api-keys.
func NewListKeysHandler(keys Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		page, err := intQuery(r, "page", 1)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		limit, err := intQuery(r, "limit", apikey.DefaultLimit)
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		if page == 0 {
			page = 1
		}
		if limit == 0 {
			limit = apikey.DefaultLimit
		}

		entries, total, err := keys.List(r.Context(), sess.UserID, page, limit)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.Collection(w, entries, response.NewPaginationMeta(page, limit, total))
	}
}

// NewEditKeyHandler returns an http.HandlerFunc for PATCH /api/v1/api-keys/{keyID}.
func NewEditKeyHandler(keys Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		keyID, err := uuidParam(r, "keyID")
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		var in apikey.Input
		if err := decodeJSON(w, r, &in); err != nil {
			response.FromError(w, r, err)
			return
		}

		if err := keys.Edit(r.Context(), sess.UserID, keyID, in); err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, map[string]any{"id": keyID, "name": in.Name, "description": in.Description})
	}
}

// NewDeleteKeyHandler returns an http.HandlerFunc for DELETE /api/v1/api-keys/{keyID}.
func NewDeleteKeyHandler(keys Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		keyID, err := uuidParam(r, "keyID")
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		if err := keys.Delete(r.Context(), sess.UserID, keyID); err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, map[string]any{"id": keyID, "deleted": true})
	}
}

// NewWhoAmIHandler returns an http.HandlerFunc for GET /api/v1/whoami. It sits
// behind API key authentication.
func NewWhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mw.GetPrincipal(r)
		if !ok {
			response.FromError(w, r, apperr.Auth("missing api key"))
			return
		}
		response.JSON(w, map[string]any{
			"user_id":   p.User.ID,
			"user_name": p.User.UserName,
		})
	}
}
