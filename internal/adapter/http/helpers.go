package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/session"
	"github.com/pulseboard/tenancy/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// validateCollectionName rejects names that could escape the tenant's
// storage prefix.
func validateCollectionName(name string) error {
	if name == "" {
		return errors.New("collection name is required")
	}
	if len(name) > 128 {
		return errors.New("collection name too long (max 128 chars)")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("collection name must not contain path separators")
	}
	if strings.Contains(name, "..") {
		return errors.New("collection name must not contain '..'")
	}
	if name[0] == '.' {
		return errors.New("collection name must not start with '.'")
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	var sessErr *session.Error
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend unavailable")
	case errors.Is(err, service.ErrNoTenant):
		writeError(w, http.StatusConflict, "no active tenant")
	case errors.As(err, &sessErr):
		// A mutation error carries its classified cause.
		writeDomainError(w, sessErr.Cause, fallbackMsg)
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
