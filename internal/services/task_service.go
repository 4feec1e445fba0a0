// internal/services/task_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowtask/taskd/internal/metrics"
	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/recurrence"
	"github.com/flowtask/taskd/internal/repositories"
)

var tracer = otel.Tracer("github.com/flowtask/taskd/internal/services")

// TaskService defines the interface for task-related business logic.
// Every method is scoped to the owning user.
type TaskService interface {
	Create(ctx context.Context, userID string, task *models.Task, tagIDs []string) (*models.Task, error)
	GetByID(ctx context.Context, userID, id string) (*models.Task, error)
	GetAll(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, userID, id string, upd *models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

type taskService struct {
	tasks    repositories.TaskRepository
	mappings repositories.MappingRepository
	tx       repositories.Transactor
	tracker  *ChangeTracker
	now      func() time.Time
}

type Option func(*taskService)

// WithClock overrides the source of completion instants.
func WithClock(now func() time.Time) Option {
	return func(s *taskService) { s.now = now }
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(
	tasks repositories.TaskRepository,
	mappings repositories.MappingRepository,
	tx repositories.Transactor,
	tracker *ChangeTracker,
	opts ...Option,
) TaskService {
	s := &taskService{
		tasks:    tasks,
		mappings: mappings,
		tx:       tx,
		tracker:  tracker,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskService) Create(ctx context.Context, userID string, task *models.Task, tagIDs []string) (*models.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.Create")
	defer span.End()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if err := normalizeRule(&task.RecurrenceRule); err != nil {
		return nil, err
	}
	now := s.now()
	if !task.IsRecurring {
		task.RecurrenceRule = nil
	} else if task.RecurrenceRule != nil {
		anchored := recurrence.Anchor(*task.RecurrenceRule, firstOccurrence(task.DueDate, now))
		task.RecurrenceRule = &anchored
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == models.StatusCompleted && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	mapping, err := s.mappingFor(ctx, userID, task.ProjectID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.tasks.Store(ctx, userID, task, tagIDs); err != nil {
		return nil, fail(span, projectError(err))
	}
	created, err := s.tasks.FindByID(ctx, userID, task.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	if created == nil {
		return nil, ErrTaskNotFound
	}

	if mapping != nil {
		s.trackAfterCommit(ctx, created.ID, models.ChangeCreate, userID, Snapshot(created), mapping.ID)
	}
	return created, nil
}

func (s *taskService) GetByID(ctx context.Context, userID, id string) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *taskService) GetAll(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	return s.tasks.FindAll(ctx, userID, filter)
}

// Update applies a partial update. Completing a recurring task archives the
// finished occurrence and advances the live task to its next occurrence;
// the archive insert and the live update share one transaction.
func (s *taskService) Update(ctx context.Context, userID, id string, upd *models.TaskUpdate) (*models.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskService.Update", trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	current, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if current == nil {
		return nil, ErrTaskNotFound
	}

	now := s.now()
	if upd.MarksCompleted() && current.Status != models.StatusCompleted {
		upd.CompletedAt = models.Some(now)
	}

	var archive *models.Task
	if current.IsRecurring && current.RecurrenceRule != nil && *current.RecurrenceRule != "" && upd.MarksCompleted() {
		ro, rule, err := planRollover(current, now)
		if err != nil {
			metrics.Rollovers.WithLabelValues(metrics.RolloverFailed).Inc()
			log.Printf("[task][update][recurrence][err] task=%s rule=%q: %v", id, *current.RecurrenceRule, err)
			return nil, fail(span, &RecurrenceError{TaskID: id, Err: err})
		}
		if ro == nil {
			metrics.Rollovers.WithLabelValues(metrics.RolloverExhausted).Inc()
			log.Printf("[task][update][recurrence] task=%s series exhausted, completing without rollover", id)
		} else {
			archive = BuildArchive(current, now, userID)
			applyRollover(upd, ro, now)
			if rule != *current.RecurrenceRule && !upd.RecurrenceRule.Set {
				upd.RecurrenceRule = models.Some(rule)
			}
			span.SetAttributes(attribute.String("task.next_due", ro.NextDue.Format(time.DateOnly)))
		}
	}

	if upd.IsRecurring != nil && !*upd.IsRecurring {
		upd.RecurrenceRule = models.Null[string]()
	}
	if upd.RecurrenceRule.Set {
		if err := normalizeRule(&upd.RecurrenceRule.Value); err != nil {
			return nil, err
		}
		if rule := upd.RecurrenceRule.Value; rule != nil {
			due := current.DueDate
			if upd.DueDate.Set {
				due = upd.DueDate.Value
			}
			anchored := recurrence.Anchor(*rule, firstOccurrence(due, now))
			upd.RecurrenceRule = models.Some(anchored)
		}
	}

	target := current.ProjectID
	if upd.ProjectID.Value != nil {
		target = upd.ProjectID.Value
	}
	mapping, err := s.mappingFor(ctx, userID, target)
	if err != nil {
		return nil, fail(span, err)
	}

	err = s.tx.WithinTx(ctx, func(tx repositories.Tx) error {
		if archive != nil {
			if err := tx.Tasks.Store(ctx, userID, archive, current.TagIDs()); err != nil {
				return err
			}
		}
		return tx.Tasks.Update(ctx, userID, id, upd, now)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fail(span, projectError(err))
	}
	if archive != nil {
		metrics.ArchivesCreated.Inc()
		metrics.Rollovers.WithLabelValues(metrics.RolloverAdvanced).Inc()
		log.Printf("[task][update][recurrence] task=%s archived as %s, next due %s",
			id, archive.ID, upd.DueDate.Value.Format(time.DateOnly))
	}

	updated, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if updated == nil {
		return nil, ErrTaskNotFound
	}

	if mapping != nil {
		changes := s.tracker.Compare(current, updated)
		s.trackAfterCommit(ctx, id, models.ChangeUpdate, userID, changes, mapping.ID)
	}
	return updated, nil
}

// Delete removes a task. A task already known to an external provider leaves
// a DELETE tombstone in the change log, written in the same transaction and
// before the row disappears.
func (s *taskService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "TaskService.Delete", trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	task, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return fail(span, err)
	}
	if task == nil {
		return ErrTaskNotFound
	}

	mapping, err := s.mappingFor(ctx, userID, task.ProjectID)
	if err != nil {
		return fail(span, err)
	}
	tombstone := mapping != nil && task.ExternalTaskID != nil && task.Source != nil

	err = s.tx.WithinTx(ctx, func(tx repositories.Tx) error {
		if tombstone {
			data := models.ChangeData{
				"externalTaskId": *task.ExternalTaskID,
				"source":         *task.Source,
				"externalListId": deref(task.ExternalListID),
				"projectId":      deref(task.ProjectID),
				"title":          task.Title,
			}
			if err := s.tracker.in(tx.Changes).TrackChange(ctx, id, models.ChangeDelete, userID, data, nil, mapping.ID); err != nil {
				return err
			}
		}
		return tx.Tasks.Delete(ctx, userID, id)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fail(span, err)
	}
	if tombstone {
		log.Printf("[task][delete] tracked DELETE for task=%s mapping=%s external=%s", id, mapping.ID, *task.ExternalTaskID)
	}
	return nil
}

func (s *taskService) mappingFor(ctx context.Context, userID string, projectID *string) (*models.TaskListMapping, error) {
	if projectID == nil || *projectID == "" {
		return nil, nil
	}
	return s.mappings.FindByProject(ctx, userID, *projectID)
}

// trackAfterCommit appends a change log entry for a mutation that is already
// persisted. Failures are logged and counted; they never fail the request.
func (s *taskService) trackAfterCommit(ctx context.Context, taskID string, changeType models.ChangeType,
	userID string, data models.ChangeData, mappingID string) {
	if err := s.tracker.TrackChange(ctx, taskID, changeType, userID, data, nil, mappingID); err != nil {
		metrics.TrackingFailures.Inc()
		log.Printf("[task][track][err] type=%s task=%s mapping=%s: %v", changeType, taskID, mappingID, err)
		return
	}
	log.Printf("[task][track] type=%s task=%s mapping=%s fields=%d", changeType, taskID, mappingID, len(data))
}

// planRollover returns a nil Rollover when the series has no further
// occurrence. The returned rule is the stored rule, anchored to the finished
// occurrence when it was COUNT-bounded without a DTSTART.
func planRollover(task *models.Task, now time.Time) (*recurrence.Rollover, string, error) {
	rule, ok := recurrence.Normalize(*task.RecurrenceRule)
	if !ok {
		return nil, "", errRuleNotNormalizable
	}
	base := firstOccurrence(task.DueDate, now)
	rule = recurrence.Anchor(rule, base)
	next, err := recurrence.NextAfter(rule, base)
	if err != nil {
		return nil, "", err
	}
	if next == nil {
		return nil, rule, nil
	}
	ro := recurrence.ComputeRollover(task.StartDate, task.DueDate, *next)
	if ro.NextStart != nil {
		log.Printf("[task][update][recurrence] task=%s offset=%dd next_due=%s next_start=%s",
			task.ID, ro.OffsetDays, ro.NextDue.Format(time.DateOnly), ro.NextStart.Format(time.DateOnly))
	}
	return &ro, rule, nil
}

// firstOccurrence is the day a series starts from: the due day, or the day of
// now for a task without a due date.
func firstOccurrence(due *time.Time, now time.Time) time.Time {
	if due != nil {
		return recurrence.TruncateDay(*due)
	}
	return recurrence.TruncateDay(now)
}

// projectError turns a rejected project connection into a request error.
func projectError(err error) error {
	if errors.Is(err, repositories.ErrProjectNotFound) {
		return &ValidationError{Field: "projectId", Reason: "project not found"}
	}
	return err
}

// applyRollover supersedes the caller's COMPLETED status: the live task goes
// back to TODO at its next occurrence. A nil NextStart leaves the stored
// start date untouched.
func applyRollover(upd *models.TaskUpdate, ro *recurrence.Rollover, now time.Time) {
	todo := models.StatusTodo
	upd.Status = &todo
	upd.DueDate = models.Some(ro.NextDue)
	upd.StartDate = models.Optional[time.Time]{}
	if ro.NextStart != nil {
		upd.StartDate = models.Some(*ro.NextStart)
	}
	upd.LastCompletedDate = models.Some(now)
}

// normalizeRule rewrites *rule into canonical form in place. Empty strings
// become nil.
func normalizeRule(rule **string) error {
	if *rule == nil {
		return nil
	}
	if len(**rule) == 0 {
		*rule = nil
		return nil
	}
	canonical, ok := recurrence.Normalize(**rule)
	if !ok {
		return &ValidationError{Field: "recurrenceRule", Reason: "unsupported recurrence rule"}
	}
	*rule = &canonical
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
