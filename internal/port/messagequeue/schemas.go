package messagequeue

// Payloads published on the lifecycle subjects. Kept flat so non-Go
// consumers can decode them without importing the domain types.

// TaskCreatedPayload is the schema for tasks.created messages.
type TaskCreatedPayload struct {
	TaskStrID            string `json:"task_str_id"`
	Description          string `json:"description"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes"`
	Status               string `json:"status"`
	SubmittedAt          string `json:"submitted_at"`
}

// TaskStatusChangedPayload is the schema for tasks.status_changed messages.
type TaskStatusChangedPayload struct {
	TaskStrID  string `json:"task_str_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// TaskDeletedPayload is the schema for tasks.deleted messages.
type TaskDeletedPayload struct {
	TaskStrID  string `json:"task_str_id"`
	LastStatus string `json:"last_status"`
}
