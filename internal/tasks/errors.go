package tasks

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidOrder rejects a malformed reorder batch before any write.
	ErrInvalidOrder = errors.New("invalid task order")
	// ErrTaskNotInProject means a batch item names a task outside the project.
	ErrTaskNotInProject = errors.New("task does not belong to project")
	// ErrOrderFailed means the batch was rolled back because of a storage failure.
	ErrOrderFailed = errors.New("failed to update task order")
	// ErrInvalidTask rejects bad task fields on create or update.
	ErrInvalidTask = errors.New("invalid task")
)

// OrderError reports the batch item that did not match a task in the project.
type OrderError struct {
	TaskID uuid.UUID
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("task %s does not belong to project", e.TaskID)
}

func (e *OrderError) Unwrap() error { return ErrTaskNotInProject }
