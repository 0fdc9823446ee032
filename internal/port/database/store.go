// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/TaskForge/internal/domain/event"
	"github.com/Strob0t/TaskForge/internal/domain/task"
)

// Store is the port interface for database operations. Every mutation is
// atomic: a failed create leaves no partial record and a rejected status
// update leaves the prior status intact.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context) ([]task.Task, error)

	// Selection queries, both restricted to pending tasks.
	NextTaskToProcess(ctx context.Context) (*task.Task, error)
	ListPendingTasks(ctx context.Context, params task.ListParams) ([]task.Task, error)

	// Lifecycle history
	ListTaskEvents(ctx context.Context, taskStrID string) ([]event.TaskEvent, error)
}
