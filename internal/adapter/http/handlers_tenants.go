package http

import (
	"net/http"
	"time"

	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/service"
)

// CreateTenant handles POST /api/v1/tenants
//
// Tenant documents are created here, in the account-provisioning flow. The
// resolver never creates them: a user without a document resolves to a null
// tenant until provisioning completes.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.CreateRequest](w, r)
	if !ok {
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.Role == "" {
		req.Role = "owner"
	}

	t := &tenant.Tenant{
		ID:         service.TenantIDForUser(req.OwnerID),
		OwnerID:    req.OwnerID,
		OwnerEmail: req.OwnerEmail,
		OwnerName:  req.OwnerName,
		Status:     tenant.StatusActive,
		Role:       req.Role,
		Features:   req.Features,
		Limits:     req.Limits,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.Create(r.Context(), t); err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTenant handles GET /api/v1/tenants/{id}
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	t, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}
