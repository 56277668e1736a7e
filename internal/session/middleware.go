package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CookieName is the cookie carrying the operator session ID.
const CookieName = "console_session"

// touchAfter bounds how often a request refreshes the stored expiry.
const touchAfter = time.Minute

type contextKey int

const sessionKey contextKey = iota

// FromContext returns the operator session resolved by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// NewContext returns ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// Middleware resolves the session cookie. Requests without a live session
// pass through without one; handlers that need an operator use Require.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := m.Get(r.Context(), c.Value)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					m.logger.Error("Failed to resolve session", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if m.clock.Now().Sub(sess.LastSeenAt) >= touchAfter {
				if err := m.Touch(r.Context(), sess); err != nil {
					m.logger.Warn("Failed to refresh session", "session_id", sess.ID, "error", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
		})
	}
}

// Require rejects requests that carry no operator session.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"login required"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, sess *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}
