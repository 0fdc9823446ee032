// Package task defines the Task domain entity and its lifecycle rules.
package task

import (
	"fmt"
	"time"

	"github.com/Strob0t/TaskForge/internal/domain"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// ParseStatus validates a caller-supplied status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: Invalid status. Allowed values: ['pending', 'processing', 'completed']", domain.ErrValidation)
}

// forbiddenTransitions is the explicit set of rejected status moves.
// Everything not listed here is allowed, same-status updates included.
var forbiddenTransitions = map[[2]Status]struct{}{
	{StatusCompleted, StatusPending}:    {},
	{StatusCompleted, StatusProcessing}: {},
	{StatusProcessing, StatusPending}:   {},
}

// ValidateTransition reports whether moving from cur to next is legal.
func ValidateTransition(cur, next Status) error {
	if _, bad := forbiddenTransitions[[2]Status{cur, next}]; bad {
		return fmt.Errorf("%w: Invalid status transition from '%s' to '%s'", domain.ErrValidation, cur, next)
	}
	return nil
}

// Task is a registered unit of work tracked by the service. The record is
// immutable after creation except for Status.
type Task struct {
	TaskStrID            string    `json:"task_str_id"`
	Description          string    `json:"description"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	Status               Status    `json:"status"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// CreateRequest holds the fields needed to register a new task.
// EstimatedTimeMinutes is a pointer so an absent field and a present but
// out-of-range value produce distinct validation messages.
type CreateRequest struct {
	TaskStrID            string `json:"task_str_id"`
	Description          string `json:"description"`
	EstimatedTimeMinutes *int   `json:"estimated_time_minutes"`
}

// Validate checks required fields in the order clients see them reported.
func (r CreateRequest) Validate() error {
	if r.TaskStrID == "" {
		return missingField("task_str_id")
	}
	if r.Description == "" {
		return missingField("description")
	}
	if r.EstimatedTimeMinutes == nil {
		return missingField("estimated_time_minutes")
	}
	if *r.EstimatedTimeMinutes <= 0 {
		return fmt.Errorf("%w: estimated_time_minutes must be greater than 0", domain.ErrValidation)
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: Missing required field: %s", domain.ErrValidation, name)
}

// UpdateStatusRequest carries a requested status change.
type UpdateStatusRequest struct {
	NewStatus string `json:"new_status"`
}
