package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTaskCreated = "task.created"
	EventTaskStatus  = "task.status"
	EventTaskDeleted = "task.deleted"
)

// TaskCreatedEvent is broadcast when a task is registered.
type TaskCreatedEvent struct {
	TaskStrID            string `json:"task_str_id"`
	Description          string `json:"description"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes"`
	Status               string `json:"status"`
	SubmittedAt          string `json:"submitted_at"`
}

// TaskStatusEvent is broadcast when a task's status changes.
type TaskStatusEvent struct {
	TaskStrID  string `json:"task_str_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// TaskDeletedEvent is broadcast when a task is removed.
type TaskDeletedEvent struct {
	TaskStrID  string `json:"task_str_id"`
	LastStatus string `json:"last_status"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
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
