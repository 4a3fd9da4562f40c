package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/nekonik/registry/internal/api/middleware"
	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/apperr"
	"github.com/nekonik/registry/internal/auth"
	"github.com/nekonik/registry/pkg/models"
)

// Accounts is the account and session service the user handlers depend on.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in auth.LoginInput) (*models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, profile map[string]any) (*models.User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID, sessionID string) error
	SessionTTL() time.Duration
}

// CookieConfig holds the attributes shared by both session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewRegisterHandler returns an http.HandlerFunc for POST /api/v1/users/register.
func NewRegisterHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.RegisterInput
		if err := decodeJSON(w, r, &in); err != nil {
			response.FromError(w, r, err)
			return
		}

		user, err := svc.Register(r.Context(), in)
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		response.Created(w, map[string]any{"id": user.ID})
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/users/login.
// On success the session id goes out only in an HttpOnly cookie and the CSRF
// token only in a response header.
func NewLoginHandler(svc Accounts, cookies CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.LoginInput
		if err := decodeJSON(w, r, &in); err != nil {
			response.FromError(w, r, err)
			return
		}
		in.RemoteIP = mw.ClientIP(r)

		sess, err := svc.Login(r.Context(), in)
		if err != nil {
			response.FromError(w, r, err)
			return
		}

		maxAge := int(svc.SessionTTL().Seconds())
		http.SetCookie(w, cookies.session(sess.ID, maxAge))
		http.SetCookie(w, cookies.valid("true", maxAge))

		h := w.Header()
		h.Set(mw.CSRFHeader, sess.CSRFToken)
		h.Set(mw.SessionExpiryHeader, strconv.FormatInt(sess.ExpiresAt.Unix(), 10))
		h.Set("Access-Control-Expose-Headers", strings.Join([]string{mw.CSRFHeader, mw.SessionExpiryHeader}, ", "))

		response.JSON(w, map[string]any{
			"user_name":  sess.UserName,
			"expires_at": sess.ExpiresAt,
		})
	}
}

// NewSessionHandler returns an http.HandlerFunc for GET /api/v1/users/session.
func NewSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}
		response.JSON(w, map[string]any{"user_name": sess.UserName})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /api/v1/users/logout.
func NewLogoutHandler(svc Accounts, cookies CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		if err := svc.Logout(r.Context(), sess.ID); err != nil {
			response.FromError(w, r, err)
			return
		}

		cookies.clear(w)
		response.JSON(w, map[string]any{"message": "logged out"})
	}
}

// NewMeHandler returns an http.HandlerFunc for GET /api/v1/users/me.
func NewMeHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		user, err := svc.Profile(r.Context(), sess.UserID)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, user)
	}
}

// NewUpdateProfileHandler returns an http.HandlerFunc for PUT /api/v1/users/me/profile.
func NewUpdateProfileHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		var req struct {
			ProfileData map[string]any `json:"profile_data"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			response.FromError(w, r, err)
			return
		}

		user, err := svc.UpdateProfile(r.Context(), sess.UserID, req.ProfileData)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, user)
	}
}

// NewDeleteAccountHandler returns an http.HandlerFunc for DELETE /api/v1/users/me.
func NewDeleteAccountHandler(svc Accounts, cookies CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mw.GetSession(r)
		if !ok {
			response.FromError(w, r, apperr.NotAcceptable("session id not found"))
			return
		}

		if err := svc.DeleteAccount(r.Context(), sess.UserID, sess.ID); err != nil {
			response.FromError(w, r, err)
			return
		}

		cookies.clear(w)
		response.JSON(w, map[string]any{"message": "account deleted"})
	}
}

func (c CookieConfig) session(value string, maxAge int) *http.Cookie {
	ck := c.base(mw.SessionCookie, value, maxAge)
	ck.HttpOnly = true
	return ck
}

// valid is the script-readable flag telling clients a session exists.
func (c CookieConfig) valid(value string, maxAge int) *http.Cookie {
	return c.base(mw.SessionValidCookie, value, maxAge)
}

func (c CookieConfig) base(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.session("", -1))
	http.SetCookie(w, c.valid("", -1))
}
