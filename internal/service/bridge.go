package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/adapter/ws"
	"github.com/Strob0t/TaskForge/internal/port/broadcast"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

// EventBridge mirrors task lifecycle events from the message queue onto
// the WebSocket hub so connected clients see changes in real time.
type EventBridge struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewEventBridge creates a bridge between the queue and the hub.
func NewEventBridge(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventBridge {
	return &EventBridge{queue: queue, hub: hub}
}

// Start subscribes to every lifecycle subject. The returned cancel stops
// all subscriptions.
func (b *EventBridge) Start(ctx context.Context) (cancel func(), err error) {
	subs := []struct {
		subject string
		handler messagequeue.Handler
	}{
		{messagequeue.SubjectTaskCreated, b.onCreated},
		{messagequeue.SubjectTaskStatusChanged, b.onStatusChanged},
		{messagequeue.SubjectTaskDeleted, b.onDeleted},
	}

	var cancels []func()
	stopAll := func() {
		for _, c := range cancels {
			c()
		}
	}

	for _, sub := range subs {
		stop, err := b.queue.Subscribe(ctx, sub.subject, sub.handler)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("bridge subscribe %s: %w", sub.subject, err)
		}
		cancels = append(cancels, stop)
	}

	return stopAll, nil
}

func (b *EventBridge) onCreated(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskCreatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal created payload: %w", err)
	}

	b.hub.BroadcastEvent(ctx, ws.EventTaskCreated, ws.TaskCreatedEvent{
		TaskStrID:            p.TaskStrID,
		Description:          p.Description,
		EstimatedTimeMinutes: p.EstimatedTimeMinutes,
		Status:               p.Status,
		SubmittedAt:          p.SubmittedAt,
	})
	return nil
}

func (b *EventBridge) onStatusChanged(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskStatusChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal status payload: %w", err)
	}

	b.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskStrID:  p.TaskStrID,
		FromStatus: p.FromStatus,
		ToStatus:   p.ToStatus,
	})
	return nil
}

func (b *EventBridge) onDeleted(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.TaskDeletedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal deleted payload: %w", err)
	}

	b.hub.BroadcastEvent(ctx, ws.EventTaskDeleted, ws.TaskDeletedEvent{
		TaskStrID:  p.TaskStrID,
		LastStatus: p.LastStatus,
	})
	return nil
}
