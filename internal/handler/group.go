package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/tally/internal/finance"
)

type GroupHandler struct {
	svc    *finance.Service
	logger *slog.Logger
}

func NewGroupHandler(svc *finance.Service, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListGroups(subject(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.svc.GetGroup(subject(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type groupRequest struct {
	Name string `json:"name"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.svc.CreateGroup(r.Context(), subject(r), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.DeleteGroup(r.Context(), subject(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "group deleted"})
}

type memberRequest struct {
	Email string `json:"email"`
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	m, err := h.svc.AddMember(r.Context(), subject(r), id, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID, err := parsePathID(r, "user_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.RemoveMember(r.Context(), subject(r), id, userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "member removed"})
}
