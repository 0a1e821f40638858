package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/finance"
	"github.com/dukerupert/tally/internal/middleware"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	"github.com/dukerupert/tally/internal/verify"
)

type AuthHandler struct {
	svc          *finance.Service
	gate         *verify.Gate
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	logger       *slog.Logger
}

func NewAuthHandler(svc *finance.Service, gate *verify.Gate, ss *store.SessionStore, us *store.UserStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		gate:         gate,
		sessionStore: ss,
		userStore:    us,
		logger:       logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req finance.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), subject(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me is public: without a valid session it reports authenticated=false
// instead of failing.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sub, ok, err := middleware.LoadSubject(r, h.sessionStore, h.userStore)
	if err != nil {
		writeError(w, r, h.logger, apperr.Internal(err))
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	u, err := h.svc.Me(sub)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": u})
}

func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req finance.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), subject(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Manager(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manager(subject(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"manager": m})
}

type verifyRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func parseVerifyType(s string) (model.VerificationType, error) {
	typ, err := model.ParseVerificationType(s)
	if err != nil {
		return "", apperr.Validation("type", "type must be email or password")
	}
	return typ, nil
}

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	typ, err := parseVerifyType(req.Type)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	issued, err := h.gate.IssueCode(r.Context(), subject(r), typ)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

func (h *AuthHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	typ, err := parseVerifyType(req.Type)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tok, err := h.gate.ConfirmCode(r.Context(), subject(r), req.Code, typ)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verify_token": tok.Token,
		"expires_at":   tok.ExpiresAt,
	})
}
