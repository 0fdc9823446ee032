// Package event defines the append-only task lifecycle event record.
package event

import "time"

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeTaskCreated       Type = "task.created"
	TypeTaskStatusChanged Type = "task.status_changed"
	TypeTaskDeleted       Type = "task.deleted"
)

// TaskEvent is a single immutable entry in a task's lifecycle history.
// Created events carry only ToStatus, deleted events only FromStatus,
// status changes both.
type TaskEvent struct {
	ID         string    `json:"id"`
	TaskStrID  string    `json:"task_str_id"`
	Type       Type      `json:"event_type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
