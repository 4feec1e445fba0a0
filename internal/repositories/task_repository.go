package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/flowtask/taskd/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ErrProjectNotFound is returned when a task is connected to a project the
// user does not own.
var ErrProjectNotFound = errors.New("project not found")

type TaskRepository interface {
	Store(ctx context.Context, userID string, task *models.Task, tagIDs []string) error
	FindByID(ctx context.Context, userID, id string) (*models.Task, error)
	FindAll(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, userID, id string, upd *models.TaskUpdate, now time.Time) error
	Delete(ctx context.Context, userID, id string) error

	// SetExternalRef records where a provider stored the task.
	SetExternalRef(ctx context.Context, userID, id string, ref models.ExternalRef) error
}

type taskRepository struct {
	db dbtx
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `
	t.id, t.user_id, t.title, t.description, t.status, t.due_date, t.start_date,
	t.duration, t.priority, t.energy_level, t.preferred_time, t.project_id,
	t.is_recurring, t.recurrence_rule, t.last_completed_date, t.completed_at,
	t.is_auto_scheduled, t.scheduled_start, t.scheduled_end, t.schedule_score,
	t.last_scheduled, t.schedule_locked, t.postponed_until,
	t.external_task_id, t.source, t.external_list_id, t.last_synced_at,
	t.created_at, t.updated_at,
	p.id, p.user_id, p.name, p.description, p.color, p.created_at, p.updated_at`

const taskFrom = `FROM tasks t LEFT JOIN projects p ON p.id = t.project_id AND p.user_id = t.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var priority, energy, pref sql.NullString
	var pID, pUser, pName, pDesc, pColor sql.NullString
	var pCreatedAt, pUpdatedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.DueDate, &t.StartDate,
		&t.Duration, &priority, &energy, &pref, &t.ProjectID,
		&t.IsRecurring, &t.RecurrenceRule, &t.LastCompletedDate, &t.CompletedAt,
		&t.IsAutoScheduled, &t.ScheduledStart, &t.ScheduledEnd, &t.ScheduleScore,
		&t.LastScheduled, &t.ScheduleLocked, &t.PostponedUntil,
		&t.ExternalTaskID, &t.Source, &t.ExternalListID, &t.LastSyncedAt,
		&t.CreatedAt, &t.UpdatedAt,
		&pID, &pUser, &pName, &pDesc, &pColor, &pCreatedAt, &pUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if priority.Valid {
		v := models.Priority(priority.String)
		t.Priority = &v
	}
	if energy.Valid {
		v := models.EnergyLevel(energy.String)
		t.EnergyLevel = &v
	}
	if pref.Valid {
		v := models.TimePreference(pref.String)
		t.PreferredTime = &v
	}
	if pID.Valid {
		t.Project = &models.Project{
			ID:          pID.String,
			UserID:      pUser.String,
			Name:        pName.String,
			Description: nullString(pDesc),
			Color:       nullString(pColor),
			CreatedAt:   pCreatedAt.Time,
			UpdatedAt:   pUpdatedAt.Time,
		}
	}
	t.Tags = []models.Tag{}
	return &t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *taskRepository) Store(ctx context.Context, userID string, task *models.Task, tagIDs []string) error {
	query := `
		INSERT INTO tasks (
			id, user_id, title, description, status, due_date, start_date,
			duration, priority, energy_level, preferred_time, project_id,
			is_recurring, recurrence_rule, last_completed_date, completed_at,
			is_auto_scheduled, scheduled_start, scheduled_end, schedule_locked, postponed_until,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	if task.ProjectID != nil {
		if err := r.ensureProject(ctx, userID, *task.ProjectID); err != nil {
			return err
		}
	}
	task.UserID = userID
	_, err := r.db.ExecContext(ctx, query,
		task.ID, userID, task.Title, task.Description, task.Status, task.DueDate, task.StartDate,
		task.Duration, task.Priority, task.EnergyLevel, task.PreferredTime, task.ProjectID,
		task.IsRecurring, task.RecurrenceRule, task.LastCompletedDate, task.CompletedAt,
		task.IsAutoScheduled, task.ScheduledStart, task.ScheduledEnd, task.ScheduleLocked, task.PostponedUntil,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if len(tagIDs) > 0 {
		if err := r.connectTags(ctx, userID, task.ID, tagIDs); err != nil {
			return err
		}
	}
	return nil
}

// FindByID returns nil, nil when the task does not exist or belongs to
// another user.
func (r *taskRepository) FindByID(ctx context.Context, userID, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` ` + taskFrom + ` WHERE t.id = $1 AND t.user_id = $2`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	tags, err := r.tagsFor(ctx, []string{task.ID})
	if err != nil {
		return nil, err
	}
	task.Tags = append(task.Tags, tags[task.ID]...)
	return task, nil
}

func (r *taskRepository) FindAll(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	conditions := []string{"t.user_id = $1"}
	args := []any{userID}
	argID := 2

	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("t.status = ANY($%d)", argID))
		args = append(args, pq.Array(statuses))
		argID++
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", argID))
		args = append(args, *filter.ProjectID)
		argID++
	}
	if filter.TagID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.id AND tt.tag_id = $%d)", argID))
		args = append(args, *filter.TagID)
		argID++
	}
	if filter.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.due_date >= $%d", argID))
		args = append(args, *filter.DueFrom)
		argID++
	}
	if filter.DueTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.due_date <= $%d", argID))
		args = append(args, *filter.DueTo)
		argID++
	}
	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", argID, argID))
		args = append(args, "%"+*filter.Search+"%")
		argID++
	}

	query := `SELECT ` + taskColumns + ` ` + taskFrom +
		` WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY t.due_date ASC NULLS LAST, t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	var ids []string
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return tasks, nil
	}

	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Tags = append(tasks[i].Tags, tags[tasks[i].ID]...)
	}
	return tasks, nil
}

func (r *taskRepository) tagsFor(ctx context.Context, taskIDs []string) (map[string][]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tt.task_id, g.id, g.name, g.color, g.user_id
		FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1)
		ORDER BY g.name`, pq.Array(taskIDs))
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Tag, len(taskIDs))
	for rows.Next() {
		var taskID string
		var tag models.Tag
		if err := rows.Scan(&taskID, &tag.ID, &tag.Name, &tag.Color, &tag.UserID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out[taskID] = append(out[taskID], tag)
	}
	return out, rows.Err()
}

// Update applies the set fields of upd. A non-nil TagIDs replaces the whole
// tag association of the task.
func (r *taskRepository) Update(ctx context.Context, userID, id string, upd *models.TaskUpdate, now time.Time) error {
	if upd.ProjectID.Value != nil {
		if err := r.ensureProject(ctx, userID, *upd.ProjectID.Value); err != nil {
			return err
		}
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Title != nil {
		set("title", *upd.Title)
	}
	if upd.Description.Set {
		set("description", upd.Description.Value)
	}
	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if upd.DueDate.Set {
		set("due_date", upd.DueDate.Value)
	}
	if upd.StartDate.Set {
		set("start_date", upd.StartDate.Value)
	}
	if upd.Duration.Set {
		set("duration", upd.Duration.Value)
	}
	if upd.Priority.Set {
		set("priority", upd.Priority.Value)
	}
	if upd.EnergyLevel.Set {
		set("energy_level", upd.EnergyLevel.Value)
	}
	if upd.PreferredTime.Set {
		set("preferred_time", upd.PreferredTime.Value)
	}
	if upd.IsRecurring != nil {
		set("is_recurring", *upd.IsRecurring)
	}
	if upd.RecurrenceRule.Set {
		set("recurrence_rule", upd.RecurrenceRule.Value)
	}
	if upd.IsAutoScheduled != nil {
		set("is_auto_scheduled", *upd.IsAutoScheduled)
	}
	if upd.ScheduleLocked != nil {
		set("schedule_locked", *upd.ScheduleLocked)
	}
	if upd.ScheduledStart.Set {
		set("scheduled_start", upd.ScheduledStart.Value)
	}
	if upd.ScheduledEnd.Set {
		set("scheduled_end", upd.ScheduledEnd.Value)
	}
	if upd.PostponedUntil.Set {
		set("postponed_until", upd.PostponedUntil.Value)
	}
	if upd.CompletedAt.Set {
		set("completed_at", upd.CompletedAt.Value)
	}
	if upd.LastCompletedDate.Set {
		set("last_completed_date", upd.LastCompletedDate.Value)
	}
	if upd.ProjectID.Set {
		set("project_id", upd.ProjectID.Value)
	}
	set("updated_at", now)

	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if upd.TagIDs != nil {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("clear task tags: %w", err)
		}
		if len(*upd.TagIDs) > 0 {
			if err := r.connectTags(ctx, userID, id, *upd.TagIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *taskRepository) ensureProject(ctx context.Context, userID, projectID string) error {
	var owned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND user_id = $2)`,
		projectID, userID).Scan(&owned)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !owned {
		return ErrProjectNotFound
	}
	return nil
}

// connectTags links only tags owned by userID; unknown ids are ignored.
func (r *taskRepository) connectTags(ctx context.Context, userID, taskID string, tagIDs []string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_tags (task_id, tag_id)
		SELECT $1, g.id FROM tags g WHERE g.id = ANY($2) AND g.user_id = $3
		ON CONFLICT DO NOTHING`, taskID, pq.Array(tagIDs), userID)
	if err != nil {
		return fmt.Errorf("connect task tags: %w", err)
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) SetExternalRef(ctx context.Context, userID, id string, ref models.ExternalRef) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET external_task_id = $1, source = $2, external_list_id = $3, last_synced_at = $4
		WHERE id = $5 AND user_id = $6`,
		ref.ExternalTaskID, ref.Source, ref.ExternalListID, ref.SyncedAt, id, userID)
	if err != nil {
		return fmt.Errorf("set external ref: %w", err)
	}
	return nil
}
