package session

// Event type constants broadcast on the session event surfaces (WebSocket
// hub, NATS subjects).
const (
	EventState         = "session.state"
	EventTenantUpdated = "tenant.updated"
)

// StateEvent is the payload broadcast on every session state transition.
type StateEvent struct {
	UserID   string `json:"user_id,omitempty"`
	State    State  `json:"state"`
	TenantID string `json:"tenant_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TenantUpdatedEvent is the payload broadcast after a confirmed
// settings/usage write.
type TenantUpdatedEvent struct {
	TenantID string `json:"tenant_id"`
	Field    string `json:"field"` // "settings" or "usage"
}
