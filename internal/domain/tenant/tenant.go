// Package tenant defines the tenant document model for multi-tenancy.
package tenant

import (
	"path"
	"time"
)

// Status represents the lifecycle state of a tenant workspace.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant represents an isolated customer workspace document. For most
// tenants the ID equals the owning user's ID.
type Tenant struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	OwnerEmail  string            `json:"owner_email"`
	OwnerName   string            `json:"owner_name"`
	Status      Status            `json:"status"`
	Role        string            `json:"role"`
	Settings    map[string]string `json:"settings,omitempty"`
	Usage       map[string]int64  `json:"usage,omitempty"`
	Features    map[string]bool   `json:"features,omitempty"`
	Limits      map[string]int64  `json:"limits,omitempty"`
	Initialized bool              `json:"initialized"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CreateRequest holds the fields required to provision a new tenant.
// Creation happens in the account-provisioning flow, not the resolver.
type CreateRequest struct {
	OwnerID    string          `json:"owner_id"`
	OwnerEmail string          `json:"owner_email"`
	OwnerName  string          `json:"owner_name"`
	Role       string          `json:"role"`
	Features   map[string]bool `json:"features,omitempty"`
	Limits     map[string]int64 `json:"limits,omitempty"`
}

// Clone returns a deep copy. Published snapshots must never alias the
// cached document's maps.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.Settings = copyMap(t.Settings)
	c.Usage = copyMap(t.Usage)
	c.Features = copyMap(t.Features)
	c.Limits = copyMap(t.Limits)
	return &c
}

// MergeSettings shallow-merges patch into the settings map.
func (t *Tenant) MergeSettings(patch map[string]string) {
	if t.Settings == nil {
		t.Settings = make(map[string]string, len(patch))
	}
	for k, v := range patch {
		t.Settings[k] = v
	}
}

// MergeUsage shallow-merges patch into the usage counters.
func (t *Tenant) MergeUsage(patch map[string]int64) {
	if t.Usage == nil {
		t.Usage = make(map[string]int64, len(patch))
	}
	for k, v := range patch {
		t.Usage[k] = v
	}
}

// FeatureAllowed reports whether the feature is enabled and currentCount is
// still below the plan limit. A feature without a limit entry is unbounded.
func (t *Tenant) FeatureAllowed(feature string, currentCount int64) bool {
	if t == nil || !t.Features[feature] {
		return false
	}
	limit, ok := t.Limits[feature]
	if !ok {
		return true
	}
	return currentCount < limit
}

// CollectionPath derives the storage address of a tenant-scoped
// sub-collection.
func (t *Tenant) CollectionPath(name string) string {
	if t == nil || t.ID == "" || name == "" {
		return ""
	}
	return path.Join("tenants", t.ID, name)
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
