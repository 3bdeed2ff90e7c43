// Package broadcast defines the port for pushing session state transitions
// to connected dashboard clients and other backend services.
package broadcast

import "context"

// Broadcaster fans a typed event out to all listeners. Implementations must
// not block the session pipeline; slow consumers are the adapter's problem.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
