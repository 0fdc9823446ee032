package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/event"
	"github.com/Strob0t/TaskForge/internal/domain/task"
	"github.com/Strob0t/TaskForge/internal/logger"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const taskColumns = "task_str_id, description, estimated_time_minutes, status, submitted_at"

// --- Tasks ---

// CreateTask inserts a new task in pending status and records the creation
// in the audit log. req must have passed Validate.
func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx,
		`INSERT INTO tasks (task_str_id, description, estimated_time_minutes)
		 VALUES ($1, $2, $3)
		 RETURNING `+taskColumns,
		req.TaskStrID, req.Description, *req.EstimatedTimeMinutes)

	t, err := scanTask(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: task_str_id must be unique", domain.ErrDuplicate)
		}
		return nil, fmt.Errorf("create task %s: %w", req.TaskStrID, err)
	}

	if err := s.appendEvent(ctx, tx, event.TaskEvent{
		TaskStrID: t.TaskStrID,
		Type:      event.TypeTaskCreated,
		ToStatus:  string(t.Status),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create task: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_str_id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

// UpdateTaskStatus moves a task to the given status. The current row is
// locked for the duration of the transaction so concurrent updates against
// the same task serialize and each one validates against the latest status.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, next task.Status) (*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var cur task.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM tasks WHERE task_str_id = $1 FOR UPDATE`, id).Scan(&cur)
	if err != nil {
		return nil, notFoundWrap(err, "update task %s", id)
	}

	if err := task.ValidateTransition(cur, next); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		`UPDATE tasks SET status = $2 WHERE task_str_id = $1 RETURNING `+taskColumns,
		id, next)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	if err := s.appendEvent(ctx, tx, event.TaskEvent{
		TaskStrID:  t.TaskStrID,
		Type:       event.TypeTaskStatusChanged,
		FromStatus: string(cur),
		ToStatus:   string(next),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update task: %w", err)
	}
	return &t, nil
}

// DeleteTask removes a task in any status and returns the deleted record
// so callers can publish it. The audit trail keeps the task's history.
func (s *Store) DeleteTask(ctx context.Context, id string) (*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx,
		`DELETE FROM tasks WHERE task_str_id = $1 RETURNING `+taskColumns, id)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "delete task %s", id)
	}

	if err := s.appendEvent(ctx, tx, event.TaskEvent{
		TaskStrID:  t.TaskStrID,
		Type:       event.TypeTaskDeleted,
		FromStatus: string(t.Status),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete task: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// --- Selection ---

// NextTaskToProcess returns the pending task with the shortest estimate,
// oldest submission first on ties. It is a read: the returned task stays
// pending until a caller explicitly updates it.
func (s *Store) NextTaskToProcess(ctx context.Context) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = 'pending'
		 ORDER BY estimated_time_minutes ASC, submitted_at ASC
		 LIMIT 1`)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "next task to process")
	}
	return &t, nil
}

// orderClauses maps validated sort parameters to fixed SQL fragments.
// Caller-supplied strings never reach the query text.
var orderClauses = map[task.SortField]map[task.SortOrder]string{
	task.SortByEstimatedTime: {
		task.OrderAsc:  "estimated_time_minutes ASC",
		task.OrderDesc: "estimated_time_minutes DESC",
	},
	task.SortBySubmittedAt: {
		task.OrderAsc:  "submitted_at ASC",
		task.OrderDesc: "submitted_at DESC",
	},
}

func (s *Store) ListPendingTasks(ctx context.Context, params task.ListParams) ([]task.Task, error) {
	clause, ok := orderClauses[params.SortBy][params.Order]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort %q %q", domain.ErrValidation, params.SortBy, params.Order)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'pending' ORDER BY ` + clause
	args := []any{}
	if params.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, params.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// --- Events ---

// appendEvent writes one audit row inside the caller's transaction. The
// request ID, when present on the context, ties the row to the API call.
func (s *Store) appendEvent(ctx context.Context, tx pgx.Tx, ev event.TaskEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO task_events (id, task_str_id, event_type, from_status, to_status, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), ev.TaskStrID, ev.Type,
		nullIfEmpty(ev.FromStatus), nullIfEmpty(ev.ToStatus), nullIfEmpty(logger.RequestID(ctx)))
	if err != nil {
		return fmt.Errorf("append task event: %w", err)
	}
	return nil
}

func (s *Store) ListTaskEvents(ctx context.Context, taskStrID string) ([]event.TaskEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_str_id, event_type, from_status, to_status, request_id, created_at
		 FROM task_events WHERE task_str_id = $1 ORDER BY created_at ASC`, taskStrID)
	if err != nil {
		return nil, fmt.Errorf("list task events %s: %w", taskStrID, err)
	}
	defer rows.Close()

	var events []event.TaskEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- Scan helpers ---

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.TaskStrID, &t.Description, &t.EstimatedTimeMinutes, &t.Status, &t.SubmittedAt)
	return t, err
}

func scanEvent(row scannable) (event.TaskEvent, error) {
	var ev event.TaskEvent
	var from, to, reqID *string
	err := row.Scan(&ev.ID, &ev.TaskStrID, &ev.Type, &from, &to, &reqID, &ev.CreatedAt)
	if err != nil {
		return ev, fmt.Errorf("scan task event: %w", err)
	}
	if from != nil {
		ev.FromStatus = *from
	}
	if to != nil {
		ev.ToStatus = *to
	}
	if reqID != nil {
		ev.RequestID = *reqID
	}
	return ev, nil
}

func collectTasks(rows pgx.Rows) ([]task.Task, error) {
	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
