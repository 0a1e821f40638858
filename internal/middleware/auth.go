package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
)

const SessionCookieName = "tally_session"

// RequireAuth validates the session cookie and populates the Subject. The
// role is read from the user row on every request so a role change takes
// effect immediately.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok, err := LoadSubject(r, sessionStore, userStore)
			if err != nil {
				slog.ErrorContext(r.Context(), "load session", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			ctx := auth.WithSubject(r.Context(), sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadSubject resolves the request's session cookie to a Subject. It
// reports false when the cookie is missing, unknown, expired, or points at
// a deleted user. Store failures are returned as errors.
func LoadSubject(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore) (auth.Subject, bool, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.Subject{}, false, nil
	}

	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil {
		return auth.Subject{}, false, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return auth.Subject{}, false, nil
	}

	u, err := userStore.GetByID(sess.UserID)
	if err != nil {
		return auth.Subject{}, false, fmt.Errorf("get session user: %w", err)
	}
	if u == nil {
		return auth.Subject{}, false, nil
	}

	return auth.Subject{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		SessionID: sess.ID,
	}, true, nil
}

// RequireManager checks that the authenticated user has the manager role.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := auth.FromContext(r.Context())
		if !ok || sub.Role != model.RoleManager {
			writeError(w, http.StatusForbidden, "managers only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP stores the caller's address in the request context for the
// activity log.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithClientIP(r.Context(), RealIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
