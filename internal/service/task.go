package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/event"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

// TaskService handles task business logic including NATS lifecycle publishing.
type TaskService struct {
	store   database.Store
	queue   messagequeue.Queue
	metrics *tfotel.Metrics
}

// NewTaskService creates a new TaskService.
func NewTaskService(store database.Store, queue messagequeue.Queue, metrics *tfotel.Metrics) *TaskService {
	return &TaskService{store: store, queue: queue, metrics: metrics}
}

// Create validates the request, persists the task, and publishes the
// creation to NATS.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	ctx, span := tfotel.StartTaskSpan(ctx, "task.create", req.TaskStrID)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.store.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.TasksCreated.Add(ctx, 1)

	// The DB row is the source of truth; a failed publish is logged, not
	// surfaced, and the created task is returned regardless.
	s.publish(ctx, messagequeue.SubjectTaskCreated, messagequeue.TaskCreatedPayload{
		TaskStrID:            t.TaskStrID,
		Description:          t.Description,
		EstimatedTimeMinutes: t.EstimatedTimeMinutes,
		Status:               string(t.Status),
		SubmittedAt:          t.SubmittedAt.Format(time.RFC3339Nano),
	})

	return t, nil
}

// Get returns a task by its string ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// UpdateStatus validates the requested status, applies the transition, and
// publishes the change. Validation order matches the API contract: missing
// field, then unknown status value, then task existence, then transition
// legality (the last two inside the store's transaction).
func (s *TaskService) UpdateStatus(ctx context.Context, id string, req task.UpdateStatusRequest) (*task.Task, error) {
	ctx, span := tfotel.StartTaskSpan(ctx, "task.update_status", id)
	defer span.End()

	if req.NewStatus == "" {
		return nil, fmt.Errorf("%w: Missing required field: new_status", domain.ErrValidation)
	}
	next, err := task.ParseStatus(req.NewStatus)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	t, err := s.store.UpdateTaskStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(prev.Status)),
		attribute.String("to", string(t.Status)),
	))
	if t.Status == task.StatusCompleted {
		s.metrics.CompletionTime.Record(ctx, time.Since(t.SubmittedAt).Seconds())
	}

	s.publish(ctx, messagequeue.SubjectTaskStatusChanged, messagequeue.TaskStatusChangedPayload{
		TaskStrID:  t.TaskStrID,
		FromStatus: string(prev.Status),
		ToStatus:   string(t.Status),
	})

	return t, nil
}

// Delete removes a task in any status and publishes the deletion.
func (s *TaskService) Delete(ctx context.Context, id string) (*task.Task, error) {
	ctx, span := tfotel.StartTaskSpan(ctx, "task.delete", id)
	defer span.End()

	t, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.TasksDeleted.Add(ctx, 1)

	s.publish(ctx, messagequeue.SubjectTaskDeleted, messagequeue.TaskDeletedPayload{
		TaskStrID:  t.TaskStrID,
		LastStatus: string(t.Status),
	})

	return t, nil
}

// List returns every task, newest submission first.
func (s *TaskService) List(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// NextToProcess returns the pending task with the shortest estimate without
// claiming it.
func (s *TaskService) NextToProcess(ctx context.Context) (*task.Task, error) {
	ctx, span := tfotel.StartSelectionSpan(ctx, "next")
	defer span.End()

	s.metrics.SelectionQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", "next"),
	))
	return s.store.NextTaskToProcess(ctx)
}

// ListPending returns pending tasks under the given sort and limit.
func (s *TaskService) ListPending(ctx context.Context, params task.ListParams) ([]task.Task, error) {
	ctx, span := tfotel.StartSelectionSpan(ctx, "pending")
	defer span.End()

	s.metrics.SelectionQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", "pending"),
	))
	return s.store.ListPendingTasks(ctx, params)
}

// Events returns a task's lifecycle history. History survives deletion, so
// an empty result only maps to not-found when the task itself is unknown.
func (s *TaskService) Events(ctx context.Context, id string) ([]event.TaskEvent, error) {
	events, err := s.store.ListTaskEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if _, err := s.store.GetTask(ctx, id); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *TaskService) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("failed to publish lifecycle event", "subject", subject, "error", err)
	}
}
