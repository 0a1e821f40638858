package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": ..., "field": ..., ...extra}. Internal
// errors are logged with their cause and shown as "internal error".
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	body := map[string]any{"error": e.Message}
	if e.Field != "" {
		body["field"] = e.Field
	}
	for k, v := range e.Extra {
		body[k] = v
	}
	writeJSON(w, e.Kind.Status(), body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("body", "invalid JSON")
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "invalid id")
	}
	return id, nil
}

// queryID parses an optional positive id query parameter. Absent means 0.
func queryID(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return id, nil
}

// subject returns the authenticated principal set by middleware.RequireAuth.
func subject(r *http.Request) auth.Subject {
	sub, _ := auth.FromContext(r.Context())
	return sub
}
