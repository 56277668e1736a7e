package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ops-console/internal/session"
)

// SessionCloser ends everything an operator session has mounted.
type SessionCloser interface {
	CloseSession(sessionID string)
}

// SessionHandler serves login, logout and the current operator.
type SessionHandler struct {
	sessions *session.Manager
	views    SessionCloser
	isDev    bool
}

// NewSessionHandler creates a session handler. views may be nil.
func NewSessionHandler(sessions *session.Manager, views SessionCloser, isDev bool) *SessionHandler {
	return &SessionHandler{sessions: sessions, views: views, isDev: isDev}
}

// RegisterRoutes registers the session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", h.Login)
		r.With(session.Require).Get("/", h.Current)
		r.With(session.Require).Delete("/", h.Logout)
	})
}

type loginRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AccessKey string `json:"access_key"`
}

// Login creates an operator session and sets its cookie.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Name, req.AccessKey)
	switch {
	case errors.Is(err, session.ErrInvalidAccessKey):
		Error(w, http.StatusUnauthorized, "invalid access key")
		return
	case errors.Is(err, session.ErrMissingEmail):
		Error(w, http.StatusBadRequest, "email is required")
		return
	case err != nil:
		slog.Error("Login failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	session.SetCookie(w, sess, !h.isDev)
	JSON(w, http.StatusCreated, sess)
}

// Current returns the operator of the request.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	JSON(w, http.StatusOK, sess)
}

// Logout destroys the session and closes its mounted views.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if err := h.sessions.Logout(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Error("Logout failed", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	if h.views != nil {
		h.views.CloseSession(sess.ID)
	}

	session.ClearCookie(w, !h.isDev)
	w.WriteHeader(http.StatusNoContent)
}
