package http

import (
	"net/http"
	"strconv"

	"github.com/pulseboard/tenancy/internal/adapter/devauth"
	"github.com/pulseboard/tenancy/internal/adapter/ws"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
	"github.com/pulseboard/tenancy/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Session *service.Session
	Store   tenantstore.Store
	Auth    *devauth.Source
	Hub     *ws.Hub
}

// GetSession handles GET /api/v1/session
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

// GetCachedSession handles GET /api/v1/session/cached?user={id}
//
// It returns the last confirmed snapshot persisted for the user, letting a
// reconnecting dashboard render immediately while the live resolution runs.
func (h *Handlers) GetCachedSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	snap, ok := h.Session.CachedSnapshot(r.Context(), userID)
	if !ok {
		writeError(w, http.StatusNotFound, "no cached snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ReloadSession handles POST /api/v1/session/reload
func (h *Handlers) ReloadSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Reload(r.Context()); err != nil {
		writeDomainError(w, err, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

type updateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

// UpdateSessionSettings handles PATCH /api/v1/session/settings
func (h *Handlers) UpdateSessionSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[updateSettingsRequest](w, r)
	if !ok {
		return
	}
	if len(req.Settings) == 0 {
		writeError(w, http.StatusBadRequest, "settings map must not be empty")
		return
	}
	if err := h.Session.UpdateSettings(r.Context(), req.Settings); err != nil {
		writeDomainError(w, err, "settings update failed")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

type updateUsageRequest struct {
	Usage map[string]int64 `json:"usage"`
}

// UpdateSessionUsage handles PATCH /api/v1/session/usage
func (h *Handlers) UpdateSessionUsage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[updateUsageRequest](w, r)
	if !ok {
		return
	}
	if len(req.Usage) == 0 {
		writeError(w, http.StatusBadRequest, "usage map must not be empty")
		return
	}
	if err := h.Session.UpdateUsage(r.Context(), req.Usage); err != nil {
		writeDomainError(w, err, "usage update failed")
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

type featureLimitResponse struct {
	Feature string `json:"feature"`
	Count   int64  `json:"count"`
	Allowed bool   `json:"allowed"`
}

// GetFeatureLimit handles GET /api/v1/session/limits/{feature}?count=N
func (h *Handlers) GetFeatureLimit(w http.ResponseWriter, r *http.Request) {
	feature := urlParam(r, "feature")

	var count int64
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		count = n
	}

	writeJSON(w, http.StatusOK, featureLimitResponse{
		Feature: feature,
		Count:   count,
		Allowed: h.Session.CheckFeatureLimit(feature, count),
	})
}

type collectionPathResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// GetCollectionPath handles GET /api/v1/session/collections/{name}
func (h *Handlers) GetCollectionPath(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	if err := validateCollectionName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := h.Session.CollectionPath(name)
	if p == "" {
		writeError(w, http.StatusConflict, "no active tenant")
		return
	}
	writeJSON(w, http.StatusOK, collectionPathResponse{Name: name, Path: p})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.Hub != nil {
		resp["ws_connections"] = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
