package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	tfotel "github.com/Strob0t/TaskForge/internal/adapter/otel"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/event"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.Store     = (*mockStore)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
)

var errNotFound = fmt.Errorf("mock: %w", domain.ErrNotFound)

func intPtr(n int) *int { return &n }

// mockStore is a minimal in-memory implementation of database.Store for
// testing. It mirrors the real store's contract: duplicate detection,
// transition validation, and an append-only event log.
type mockStore struct {
	tasks  []task.Task
	events []event.TaskEvent
	clock  time.Time

	// Error hooks for injecting failures.
	createErr error
	listErr   error
}

// now returns strictly increasing timestamps so submission-order
// tie-breaks are deterministic.
func (m *mockStore) now() time.Time {
	if m.clock.IsZero() {
		m.clock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockStore) CreateTask(_ context.Context, req task.CreateRequest) (*task.Task, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for i := range m.tasks {
		if m.tasks[i].TaskStrID == req.TaskStrID {
			return nil, fmt.Errorf("%w: task_str_id must be unique", domain.ErrDuplicate)
		}
	}
	t := task.Task{
		TaskStrID:            req.TaskStrID,
		Description:          req.Description,
		EstimatedTimeMinutes: *req.EstimatedTimeMinutes,
		Status:               task.StatusPending,
		SubmittedAt:          m.now(),
	}
	m.tasks = append(m.tasks, t)
	m.events = append(m.events, event.TaskEvent{
		TaskStrID: t.TaskStrID, Type: event.TypeTaskCreated, ToStatus: string(t.Status),
	})
	return &t, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].TaskStrID == id {
			t := m.tasks[i] // copy, so callers never alias the stored row
			return &t, nil
		}
	}
	return nil, errNotFound
}

func (m *mockStore) UpdateTaskStatus(_ context.Context, id string, next task.Status) (*task.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].TaskStrID == id {
			if err := task.ValidateTransition(m.tasks[i].Status, next); err != nil {
				return nil, err
			}
			from := m.tasks[i].Status
			m.tasks[i].Status = next
			m.events = append(m.events, event.TaskEvent{
				TaskStrID: id, Type: event.TypeTaskStatusChanged,
				FromStatus: string(from), ToStatus: string(next),
			})
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, errNotFound
}

func (m *mockStore) DeleteTask(_ context.Context, id string) (*task.Task, error) {
	for i := range m.tasks {
		if m.tasks[i].TaskStrID == id {
			t := m.tasks[i]
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			m.events = append(m.events, event.TaskEvent{
				TaskStrID: id, Type: event.TypeTaskDeleted, FromStatus: string(t.Status),
			})
			return &t, nil
		}
	}
	return nil, errNotFound
}

func (m *mockStore) ListTasks(_ context.Context) ([]task.Task, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]task.Task, len(m.tasks))
	copy(out, m.tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *mockStore) pending() []task.Task {
	var out []task.Task
	for _, t := range m.tasks {
		if t.Status == task.StatusPending {
			out = append(out, t)
		}
	}
	return out
}

func (m *mockStore) NextTaskToProcess(_ context.Context) (*task.Task, error) {
	pending := m.pending()
	if len(pending) == 0 {
		return nil, errNotFound
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].EstimatedTimeMinutes != pending[j].EstimatedTimeMinutes {
			return pending[i].EstimatedTimeMinutes < pending[j].EstimatedTimeMinutes
		}
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})
	return &pending[0], nil
}

func (m *mockStore) ListPendingTasks(_ context.Context, params task.ListParams) ([]task.Task, error) {
	pending := m.pending()
	sort.Slice(pending, func(i, j int) bool {
		var less bool
		if params.SortBy == task.SortBySubmittedAt {
			less = pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
		} else {
			less = pending[i].EstimatedTimeMinutes < pending[j].EstimatedTimeMinutes
		}
		if params.Order == task.OrderDesc {
			return !less
		}
		return less
	})
	if params.Limit > 0 && params.Limit < len(pending) {
		pending = pending[:params.Limit]
	}
	return pending, nil
}

func (m *mockStore) ListTaskEvents(_ context.Context, taskStrID string) ([]event.TaskEvent, error) {
	var out []event.TaskEvent
	for _, ev := range m.events {
		if ev.TaskStrID == taskStrID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

// newService builds a TaskService whose metric instruments come from the
// default no-op meter provider.
func newService(store database.Store, queue messagequeue.Queue) *TaskService {
	m, err := tfotel.NewMetrics()
	if err != nil {
		panic(err)
	}
	return NewTaskService(store, queue, m)
}

// --- TaskService Tests ---

func TestTaskServiceCreate(t *testing.T) {
	queue := &mockQueue{}
	svc := newService(&mockStore{}, queue)

	req := task.CreateRequest{
		TaskStrID:            "TASK001",
		Description:          "Process data",
		EstimatedTimeMinutes: intPtr(30),
	}
	got, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TaskStrID != "TASK001" {
		t.Fatalf("expected 'TASK001', got %q", got.TaskStrID)
	}
	if got.Status != task.StatusPending {
		t.Fatalf("expected status 'pending', got %q", got.Status)
	}
	if got.SubmittedAt.IsZero() {
		t.Fatal("expected submitted_at to be set")
	}

	// Verify NATS publish was called with the created payload.
	if len(queue.published) != 1 {
		t.Fatalf("expected 1 publish call, got %d", len(queue.published))
	}
	if queue.published[0].subject != messagequeue.SubjectTaskCreated {
		t.Fatalf("expected subject %q, got %q", messagequeue.SubjectTaskCreated, queue.published[0].subject)
	}
	var payload messagequeue.TaskCreatedPayload
	if err := json.Unmarshal(queue.published[0].data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TaskStrID != "TASK001" || payload.Status != "pending" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTaskServiceCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		req  task.CreateRequest
		want string
	}{
		{
			name: "missing task_str_id",
			req:  task.CreateRequest{Description: "d", EstimatedTimeMinutes: intPtr(5)},
			want: "Missing required field: task_str_id",
		},
		{
			name: "missing description",
			req:  task.CreateRequest{TaskStrID: "T1", EstimatedTimeMinutes: intPtr(5)},
			want: "Missing required field: description",
		},
		{
			name: "missing estimate",
			req:  task.CreateRequest{TaskStrID: "T1", Description: "d"},
			want: "Missing required field: estimated_time_minutes",
		},
		{
			name: "zero estimate",
			req:  task.CreateRequest{TaskStrID: "T1", Description: "d", EstimatedTimeMinutes: intPtr(0)},
			want: "estimated_time_minutes must be greater than 0",
		},
		{
			name: "negative estimate",
			req:  task.CreateRequest{TaskStrID: "T1", Description: "d", EstimatedTimeMinutes: intPtr(-10)},
			want: "estimated_time_minutes must be greater than 0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{}
			queue := &mockQueue{}
			svc := newService(store, queue)

			_, err := svc.Create(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %q", tc.want, err.Error())
			}
			// Rejected before persistence: nothing stored, nothing published.
			if len(store.tasks) != 0 {
				t.Fatalf("expected no stored tasks, got %d", len(store.tasks))
			}
			if len(queue.published) != 0 {
				t.Fatalf("expected no publishes, got %d", len(queue.published))
			}
		})
	}
}

func TestTaskServiceCreateDuplicate(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockQueue{})

	req := task.CreateRequest{TaskStrID: "DUP", Description: "first", EstimatedTimeMinutes: intPtr(5)}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	req.Description = "second"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(store.tasks) != 1 {
		t.Fatalf("expected 1 stored task, got %d", len(store.tasks))
	}
}

func TestTaskServiceCreatePublishFailure(t *testing.T) {
	// Even if queue publish fails, the task is saved and returned.
	queue := &mockQueue{publishErr: errors.New("nats down")}
	svc := newService(&mockStore{}, queue)

	req := task.CreateRequest{TaskStrID: "T1", Description: "resilient", EstimatedTimeMinutes: intPtr(5)}
	got, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TaskStrID != "T1" {
		t.Fatalf("expected 'T1', got %q", got.TaskStrID)
	}
}

func TestTaskServiceGet(t *testing.T) {
	store := &mockStore{
		tasks: []task.Task{{TaskStrID: "T1", Description: "Fix bug", Status: task.StatusPending}},
	}
	svc := newService(store, &mockQueue{})

	got, err := svc.Get(context.Background(), "T1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "Fix bug" {
		t.Fatalf("expected 'Fix bug', got %q", got.Description)
	}
}

func TestTaskServiceGetNotFound(t *testing.T) {
	svc := newService(&mockStore{}, &mockQueue{})

	_, err := svc.Get(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskServiceUpdateStatus(t *testing.T) {
	store := &mockStore{
		tasks: []task.Task{{TaskStrID: "T1", Status: task.StatusPending}},
	}
	queue := &mockQueue{}
	svc := newService(store, queue)

	got, err := svc.UpdateStatus(context.Background(), "T1", task.UpdateStatusRequest{NewStatus: "processing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != task.StatusProcessing {
		t.Fatalf("expected 'processing', got %q", got.Status)
	}

	if len(queue.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(queue.published))
	}
	if queue.published[0].subject != messagequeue.SubjectTaskStatusChanged {
		t.Fatalf("expected subject %q, got %q", messagequeue.SubjectTaskStatusChanged, queue.published[0].subject)
	}
	var payload messagequeue.TaskStatusChangedPayload
	if err := json.Unmarshal(queue.published[0].data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.FromStatus != "pending" || payload.ToStatus != "processing" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTaskServiceUpdateStatusValidation(t *testing.T) {
	newStore := func() *mockStore {
		return &mockStore{tasks: []task.Task{{TaskStrID: "T1", Status: task.StatusCompleted}}}
	}

	t.Run("missing field", func(t *testing.T) {
		svc := newService(newStore(), &mockQueue{})
		_, err := svc.UpdateStatus(context.Background(), "T1", task.UpdateStatusRequest{})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if !strings.Contains(err.Error(), "Missing required field: new_status") {
			t.Fatalf("unexpected message: %q", err.Error())
		}
	})

	t.Run("invalid status value", func(t *testing.T) {
		svc := newService(newStore(), &mockQueue{})
		_, err := svc.UpdateStatus(context.Background(), "T1", task.UpdateStatusRequest{NewStatus: "done"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		want := "Invalid status. Allowed values: ['pending', 'processing', 'completed']"
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("invalid status checked before existence", func(t *testing.T) {
		svc := newService(&mockStore{}, &mockQueue{})
		_, err := svc.UpdateStatus(context.Background(), "missing", task.UpdateStatusRequest{NewStatus: "done"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for unknown status on missing task, got %v", err)
		}
	})

	t.Run("illegal transition", func(t *testing.T) {
		store := newStore()
		queue := &mockQueue{}
		svc := newService(store, queue)

		_, err := svc.UpdateStatus(context.Background(), "T1", task.UpdateStatusRequest{NewStatus: "pending"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		want := "Invalid status transition from 'completed' to 'pending'"
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q, got %q", want, err.Error())
		}
		if store.tasks[0].Status != task.StatusCompleted {
			t.Fatalf("rejected transition mutated status: %q", store.tasks[0].Status)
		}
		if len(queue.published) != 0 {
			t.Fatalf("expected no publishes on rejection, got %d", len(queue.published))
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc := newService(&mockStore{}, &mockQueue{})
		_, err := svc.UpdateStatus(context.Background(), "missing", task.UpdateStatusRequest{NewStatus: "processing"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTaskServiceDelete(t *testing.T) {
	store := &mockStore{
		tasks: []task.Task{{TaskStrID: "T1", Status: task.StatusProcessing}},
	}
	queue := &mockQueue{}
	svc := newService(store, queue)

	got, err := svc.Delete(context.Background(), "T1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TaskStrID != "T1" {
		t.Fatalf("expected deleted record 'T1', got %q", got.TaskStrID)
	}
	if len(store.tasks) != 0 {
		t.Fatalf("expected 0 tasks after delete, got %d", len(store.tasks))
	}

	if len(queue.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(queue.published))
	}
	var payload messagequeue.TaskDeletedPayload
	if err := json.Unmarshal(queue.published[0].data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.LastStatus != "processing" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTaskServiceDeleteNotFound(t *testing.T) {
	queue := &mockQueue{}
	svc := newService(&mockStore{}, queue)

	_, err := svc.Delete(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("expected no publishes, got %d", len(queue.published))
	}
}

func TestTaskServiceList(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockQueue{})

	for _, id := range []string{"T1", "T2", "T3"} {
		req := task.CreateRequest{TaskStrID: id, Description: "d", EstimatedTimeMinutes: intPtr(5)}
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got))
	}
	// Newest submission first.
	if got[0].TaskStrID != "T3" || got[2].TaskStrID != "T1" {
		t.Fatalf("unexpected order: %v, %v, %v", got[0].TaskStrID, got[1].TaskStrID, got[2].TaskStrID)
	}
}

func TestTaskServiceNextToProcess(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockQueue{})

	// A(10 min) submitted first, then B(5 min), then C(5 min):
	// B wins on estimate, and beats C on earlier submission.
	for _, fixture := range []struct {
		id      string
		minutes int
	}{
		{"A", 10}, {"B", 5}, {"C", 5},
	} {
		req := task.CreateRequest{
			TaskStrID:            fixture.id,
			Description:          "d",
			EstimatedTimeMinutes: intPtr(fixture.minutes),
		}
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("create %s: %v", fixture.id, err)
		}
	}

	got, err := svc.NextToProcess(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TaskStrID != "B" {
		t.Fatalf("expected 'B', got %q", got.TaskStrID)
	}
	if got.Status != task.StatusPending {
		t.Fatalf("selection must not claim: status %q", got.Status)
	}
}

func TestTaskServiceNextToProcessEmpty(t *testing.T) {
	svc := newService(&mockStore{}, &mockQueue{})

	_, err := svc.NextToProcess(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskServiceListPending(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockQueue{})

	for _, fixture := range []struct {
		id      string
		minutes int
	}{
		{"T5", 5}, {"T10", 10}, {"T20", 20},
	} {
		req := task.CreateRequest{
			TaskStrID:            fixture.id,
			Description:          "d",
			EstimatedTimeMinutes: intPtr(fixture.minutes),
		}
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("create %s: %v", fixture.id, err)
		}
	}

	// Longest estimate first, capped at one: exactly the 20-minute task.
	got, err := svc.ListPending(context.Background(), task.ListParams{
		SortBy: task.SortByEstimatedTime,
		Order:  task.OrderDesc,
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].TaskStrID != "T20" {
		t.Fatalf("expected exactly T20, got %v", got)
	}
}

func TestTaskServiceEvents(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockQueue{})

	req := task.CreateRequest{TaskStrID: "T1", Description: "d", EstimatedTimeMinutes: intPtr(5)}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "T1", task.UpdateStatusRequest{NewStatus: "processing"}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := svc.Delete(context.Background(), "T1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// History survives deletion.
	events, err := svc.Events(context.Background(), "T1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != event.TypeTaskCreated ||
		events[1].Type != event.TypeTaskStatusChanged ||
		events[2].Type != event.TypeTaskDeleted {
		t.Fatalf("unexpected event sequence: %+v", events)
	}
}

func TestTaskServiceEventsUnknownTask(t *testing.T) {
	svc := newService(&mockStore{}, &mockQueue{})

	_, err := svc.Events(context.Background(), "never-existed")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
