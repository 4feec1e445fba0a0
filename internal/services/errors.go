package services

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned when a task is missing or owned by another user.
var ErrTaskNotFound = errors.New("task not found")

var errRuleNotNormalizable = errors.New("recurrence rule cannot be normalized")

// RecurrenceError marks a failure while rolling a recurring task over, so the
// HTTP layer can tell scheduling bugs apart from persistence failures.
type RecurrenceError struct {
	TaskID string
	Err    error
}

func (e *RecurrenceError) Error() string {
	return fmt.Sprintf("recurring completion of task %s: %v", e.TaskID, e.Err)
}

func (e *RecurrenceError) Unwrap() error { return e.Err }

// ValidationError reports a request value the service refuses to persist.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
