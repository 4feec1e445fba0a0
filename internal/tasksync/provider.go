// Package tasksync drains the task change log into external task providers.
//
// Entries are pushed per mapping in the order they were recorded. A failed
// push stops that mapping's batch so later entries never overtake it; the
// remainder is retried on the next pass.
package tasksync

import (
	"context"

	"github.com/flowtask/taskd/internal/models"
)

// Provider pushes one change to an external task service.
//
// For DELETE entries task is nil and the tombstone in change.ChangeData
// carries the external identity. For CREATE and UPDATE task is the current
// state of the row. A returned ExternalRef is written back to the task.
type Provider interface {
	Source() string
	Push(ctx context.Context, mapping models.TaskListMapping, change models.TaskChange, task *models.Task) (*models.ExternalRef, error)
}
