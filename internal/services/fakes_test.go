package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/repositories"
)

type memTasks struct {
	mu   sync.Mutex
	rows map[string]models.Task
	tags map[string]models.Tag
	// project id -> owner; nil accepts any project
	projects map[string]string
	fail     error
	calls    []string
}

func newMemTasks() *memTasks {
	return &memTasks{rows: map[string]models.Task{}, tags: map[string]models.Tag{}}
}

func (m *memTasks) addTag(id, userID string) {
	m.tags[id] = models.Tag{ID: id, Name: id, UserID: userID}
}

func (m *memTasks) put(task models.Task) {
	m.rows[task.ID] = task
}

func (m *memTasks) ownsProject(userID string, projectID *string) bool {
	if m.projects == nil || projectID == nil {
		return true
	}
	owner, ok := m.projects[*projectID]
	return ok && owner == userID
}

func (m *memTasks) resolveTags(userID string, ids []string) []models.Tag {
	out := []models.Tag{}
	for _, id := range ids {
		if tag, ok := m.tags[id]; ok && tag.UserID == userID {
			out = append(out, tag)
		}
	}
	return out
}

func (m *memTasks) Store(_ context.Context, userID string, task *models.Task, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "store")
	if m.fail != nil {
		return m.fail
	}
	if !m.ownsProject(userID, task.ProjectID) {
		return repositories.ErrProjectNotFound
	}
	stored := *task
	stored.UserID = userID
	stored.Tags = m.resolveTags(userID, tagIDs)
	m.rows[stored.ID] = stored
	return nil
}

func (m *memTasks) FindByID(_ context.Context, userID, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.rows[id]
	if !ok || task.UserID != userID {
		return nil, nil
	}
	task.Tags = append([]models.Tag{}, task.Tags...)
	return &task, nil
}

func (m *memTasks) FindAll(_ context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, task := range m.rows {
		if task.UserID != userID {
			continue
		}
		if filter.ProjectID != nil && (task.ProjectID == nil || *task.ProjectID != *filter.ProjectID) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, userID, id string, upd *models.TaskUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "update")
	if m.fail != nil {
		return m.fail
	}
	if !m.ownsProject(userID, upd.ProjectID.Value) {
		return repositories.ErrProjectNotFound
	}
	task, ok := m.rows[id]
	if !ok || task.UserID != userID {
		return repositories.ErrNotFound
	}
	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description.Set {
		task.Description = upd.Description.Value
	}
	if upd.Status != nil {
		task.Status = *upd.Status
	}
	if upd.DueDate.Set {
		task.DueDate = upd.DueDate.Value
	}
	if upd.StartDate.Set {
		task.StartDate = upd.StartDate.Value
	}
	if upd.Priority.Set {
		task.Priority = upd.Priority.Value
	}
	if upd.IsRecurring != nil {
		task.IsRecurring = *upd.IsRecurring
	}
	if upd.RecurrenceRule.Set {
		task.RecurrenceRule = upd.RecurrenceRule.Value
	}
	if upd.CompletedAt.Set {
		task.CompletedAt = upd.CompletedAt.Value
	}
	if upd.LastCompletedDate.Set {
		task.LastCompletedDate = upd.LastCompletedDate.Value
	}
	if upd.ProjectID.Set {
		task.ProjectID = upd.ProjectID.Value
	}
	if upd.TagIDs != nil {
		task.Tags = m.resolveTags(userID, *upd.TagIDs)
	}
	task.UpdatedAt = now
	m.rows[id] = task
	return nil
}

func (m *memTasks) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	task, ok := m.rows[id]
	if !ok || task.UserID != userID {
		return repositories.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memTasks) SetExternalRef(_ context.Context, userID, id string, ref models.ExternalRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.rows[id]
	if !ok || task.UserID != userID {
		return repositories.ErrNotFound
	}
	task.ExternalTaskID = &ref.ExternalTaskID
	task.Source = &ref.Source
	task.ExternalListID = &ref.ExternalListID
	task.LastSyncedAt = &ref.SyncedAt
	m.rows[id] = task
	return nil
}

type memChanges struct {
	mu      sync.Mutex
	entries []models.TaskChange
	fail    error
}

func (m *memChanges) Append(_ context.Context, change *models.TaskChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, *change)
	return nil
}

func (m *memChanges) ListPending(_ context.Context, userID, mappingID string, limit int) ([]models.TaskChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskChange
	for _, c := range m.entries {
		if c.UserID == userID && c.MappingID == mappingID && c.SyncedAt == nil {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memChanges) MarkSynced(_ context.Context, userID string, ids []string, providerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for i := range m.entries {
			if m.entries[i].ID == id && m.entries[i].UserID == userID {
				m.entries[i].SyncedAt = &at
				m.entries[i].ProviderID = &providerID
			}
		}
	}
	return nil
}

type memMappings struct {
	byProject map[string]models.TaskListMapping
	fail      error
}

func (m *memMappings) FindByProject(_ context.Context, userID, projectID string) (*models.TaskListMapping, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	mapping, ok := m.byProject[projectID]
	if !ok || mapping.UserID != userID || !mapping.IsActive {
		return nil, nil
	}
	return &mapping, nil
}

func (m *memMappings) ListActive(context.Context) ([]models.TaskListMapping, error) {
	var out []models.TaskListMapping
	for _, mapping := range m.byProject {
		if mapping.IsActive {
			out = append(out, mapping)
		}
	}
	return out, nil
}

func (m *memMappings) TouchSynced(context.Context, string, string, time.Time) error { return nil }

// memTx restores the task rows and change log when fn fails.
type memTx struct {
	tasks   *memTasks
	changes *memChanges
}

func (t *memTx) WithinTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	t.tasks.mu.Lock()
	rows := make(map[string]models.Task, len(t.tasks.rows))
	for k, v := range t.tasks.rows {
		rows[k] = v
	}
	t.tasks.mu.Unlock()
	t.changes.mu.Lock()
	entries := append([]models.TaskChange(nil), t.changes.entries...)
	t.changes.mu.Unlock()

	err := fn(repositories.Tx{Tasks: t.tasks, Changes: t.changes})
	if err != nil {
		t.tasks.mu.Lock()
		t.tasks.rows = rows
		t.tasks.mu.Unlock()
		t.changes.mu.Lock()
		t.changes.entries = entries
		t.changes.mu.Unlock()
	}
	return err
}

var errBoom = errors.New("boom")
