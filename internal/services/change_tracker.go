package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/flowtask/taskd/internal/metrics"
	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/repositories"
)

// ChangeTracker records task mutations for later propagation to external
// providers. It never touches the task itself.
type ChangeTracker struct {
	changes repositories.ChangeRepository
	now     func() time.Time
}

func NewChangeTracker(changes repositories.ChangeRepository) *ChangeTracker {
	return &ChangeTracker{changes: changes, now: time.Now}
}

// in returns a tracker writing through repo, e.g. one bound to a transaction.
func (t *ChangeTracker) in(repo repositories.ChangeRepository) *ChangeTracker {
	return &ChangeTracker{changes: repo, now: t.now}
}

// Snapshot flattens the syncable fields of a task into comparable values.
func Snapshot(task *models.Task) models.ChangeData {
	tagIDs := task.TagIDs()
	sort.Strings(tagIDs)
	return models.ChangeData{
		"title":             task.Title,
		"description":       deref(task.Description),
		"status":            string(task.Status),
		"dueDate":           timeValue(task.DueDate),
		"startDate":         timeValue(task.StartDate),
		"duration":          deref(task.Duration),
		"priority":          deref(task.Priority),
		"energyLevel":       deref(task.EnergyLevel),
		"preferredTime":     deref(task.PreferredTime),
		"projectId":         deref(task.ProjectID),
		"tagIds":            tagIDs,
		"isRecurring":       task.IsRecurring,
		"recurrenceRule":    deref(task.RecurrenceRule),
		"lastCompletedDate": timeValue(task.LastCompletedDate),
		"completedAt":       timeValue(task.CompletedAt),
		"isAutoScheduled":   task.IsAutoScheduled,
		"scheduledStart":    timeValue(task.ScheduledStart),
		"scheduledEnd":      timeValue(task.ScheduledEnd),
		"scheduleLocked":    task.ScheduleLocked,
		"postponedUntil":    timeValue(task.PostponedUntil),
	}
}

// Compare returns the fields whose values differ between the two states as
// key -> {old, new}. Keys missing from either side are skipped.
func (t *ChangeTracker) Compare(old, updated *models.Task) models.ChangeData {
	before, after := Snapshot(old), Snapshot(updated)
	diff := models.ChangeData{}
	for key, newVal := range after {
		oldVal, ok := before[key]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			diff[key] = models.FieldChange{Old: oldVal, New: newVal}
		}
	}
	return diff
}

// TrackChange appends one immutable change log entry. data may be a diff from
// Compare or any hand-built payload such as a deletion tombstone.
func (t *ChangeTracker) TrackChange(ctx context.Context, taskID string, changeType models.ChangeType,
	userID string, data models.ChangeData, providerID *string, mappingID string) error {
	if data == nil {
		data = models.ChangeData{}
	}
	change := &models.TaskChange{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		ChangeType: changeType,
		UserID:     userID,
		ChangeData: data,
		ProviderID: providerID,
		MappingID:  mappingID,
		CreatedAt:  t.now(),
	}
	if err := t.changes.Append(ctx, change); err != nil {
		return fmt.Errorf("track %s change for task %s: %w", changeType, taskID, err)
	}
	metrics.ChangesTracked.WithLabelValues(string(changeType)).Inc()
	return nil
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format(time.RFC3339Nano)
}
