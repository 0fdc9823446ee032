package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new message types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	// Dead-letter copies keep the original payload verbatim; they are
	// inspected by operators, not re-validated.
	if strings.HasSuffix(subject, DLQSuffix) {
		return nil
	}

	var target any
	switch subject {
	case SubjectTaskCreated:
		target = &TaskCreatedPayload{}
	case SubjectTaskStatusChanged:
		target = &TaskStatusChangedPayload{}
	case SubjectTaskDeleted:
		target = &TaskDeletedPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
