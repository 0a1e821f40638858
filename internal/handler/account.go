package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/finance"
	"github.com/dukerupert/tally/internal/model"
)

type AccountHandler struct {
	svc    *finance.Service
	logger *slog.Logger
}

func NewAccountHandler(svc *finance.Service, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

func (h *AccountHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// SuggestCategory handles GET /api/categories/suggest?description=...
func (h *AccountHandler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := h.svc.SuggestCategory(r.URL.Query().Get("description"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// parseListQuery reads group_id, category_id, date_from, date_to, month,
// limit and client_id from the query string.
func parseListQuery(r *http.Request) (finance.ListQuery, error) {
	var q finance.ListQuery
	var err error

	if q.Filter.GroupID, err = queryID(r, "group_id"); err != nil {
		return q, err
	}
	if q.Filter.CategoryID, err = queryID(r, "category_id"); err != nil {
		return q, err
	}
	if q.ClientID, err = queryID(r, "client_id"); err != nil {
		return q, err
	}

	values := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **model.Date
	}{
		{"date_from", &q.Filter.DateFrom},
		{"date_to", &q.Filter.DateTo},
	} {
		s := values.Get(p.name)
		if s == "" {
			continue
		}
		d, err := model.ParseDate(s)
		if err != nil {
			return q, apperr.Validation(p.name, "date must be YYYY-MM-DD")
		}
		*p.dst = &d
	}

	q.Filter.Month = values.Get("month")

	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, apperr.Validation("limit", "must be a positive integer")
		}
		q.Filter.Limit = n
	}
	return q, nil
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	accounts, err := h.svc.ListAccounts(subject(r), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.svc.GetAccount(subject(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req finance.AccountInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a, err := h.svc.CreateAccount(r.Context(), subject(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), subject(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
