package http

import (
	"net/http"

	"github.com/pulseboard/tenancy/internal/domain/identity"
)

type devLoginRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DevLogin handles POST /dev/login
//
// It drives the in-memory auth source so the session pipeline can be
// exercised without a real identity provider. Mounted only when dev mode
// is enabled.
func (h *Handlers) DevLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[devLoginRequest](w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	h.Auth.Login(identity.User{ID: req.ID, Email: req.Email, DisplayName: req.Name})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "user": req.ID})
}

// DevLogout handles POST /dev/logout
func (h *Handlers) DevLogout(w http.ResponseWriter, _ *http.Request) {
	h.Auth.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
