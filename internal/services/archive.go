package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowtask/taskd/internal/models"
)

// BuildArchive materializes the occurrence being completed as a standalone,
// non-recurring COMPLETED task. It keeps the pre-rollover due and start
// dates; without a due date the completion instant is used. Tags are shared
// by reference.
func BuildArchive(task *models.Task, completedAt time.Time, userID string) *models.Task {
	due := completedAt
	if task.DueDate != nil {
		due = *task.DueDate
	}
	done := completedAt

	return &models.Task{
		ID:            uuid.NewString(),
		Title:         task.Title,
		Description:   clonePtr(task.Description),
		Status:        models.StatusCompleted,
		DueDate:       &due,
		StartDate:     clonePtr(task.StartDate),
		Duration:      clonePtr(task.Duration),
		Priority:      clonePtr(task.Priority),
		EnergyLevel:   clonePtr(task.EnergyLevel),
		PreferredTime: clonePtr(task.PreferredTime),
		ProjectID:     clonePtr(task.ProjectID),
		Tags:          append([]models.Tag(nil), task.Tags...),
		UserID:        userID,
		IsRecurring:   false,
		CompletedAt:   &done,
		CreatedAt:     completedAt,
		UpdatedAt:     completedAt,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
