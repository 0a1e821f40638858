package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/tally/internal/finance"
)

type ManagerHandler struct {
	svc    *finance.Service
	logger *slog.Logger
}

func NewManagerHandler(svc *finance.Service, logger *slog.Logger) *ManagerHandler {
	return &ManagerHandler{svc: svc, logger: logger}
}

func (h *ManagerHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req finance.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.CreateClient(r.Context(), subject(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *ManagerHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.ListClients(subject(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ManagerHandler) ClientDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	d, err := h.svc.ClientDetails(subject(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type feedbackRequest struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

func (h *ManagerHandler) SendFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	f, err := h.svc.SendFeedback(r.Context(), subject(r), req.UserID, req.Message)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ListFeedback serves both roles: users get what they received, managers
// what they sent, optionally for one client_id.
func (h *ManagerHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryID(r, "client_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.svc.ListFeedback(subject(r), clientID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ManagerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.ManagerOverview(r.Context(), subject(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *ManagerHandler) Export(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryID(r, "client_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rep, err := h.svc.Export(r.Context(), subject(r), clientID, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(rep.Data)
}

func (h *ManagerHandler) Logs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListLogs(subject(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
