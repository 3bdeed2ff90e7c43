package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// BroadcastEvent implements the broadcast port: it marshals a typed event
// payload and fans it out to every connected client.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
