package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/flowtask/taskd/internal/models"
)

// testcontainers-go panics when Docker is missing, so probe first.
func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	if !dockerAvailable() {
		t.Skip("Docker not available, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("taskd"),
		postgres.WithUsername("taskd"),
		postgres.WithPassword("taskd"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	// idempotent
	require.NoError(t, Migrate(ctx, db))
	return db
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO projects (id, user_id, name) VALUES ('p1', 'u1', 'Home'), ('p2', 'u2', 'Other')`,
		`INSERT INTO tags (id, user_id, name) VALUES ('g1', 'u1', 'errand'), ('g2', 'u1', 'weekly'), ('gx', 'u2', 'foreign')`,
		`INSERT INTO task_list_mappings (id, user_id, project_id, provider_id, source, external_list_id)
		 VALUES ('m1', 'u1', 'p1', 'prov-1', 'GOOGLE', 'list-1')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
}

func ptr[T any](v T) *T { return &v }

func TestPostgres_TaskLifecycle(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewTaskRepository(db)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	task := &models.Task{
		ID: "t1", Title: "Weekly review", Status: models.StatusTodo,
		DueDate: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), Priority: ptr(models.PriorityHigh),
		ProjectID: ptr("p1"), IsRecurring: true, RecurrenceRule: ptr("FREQ=WEEKLY;BYDAY=MO"),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Store(ctx, "u1", task, []string{"g1", "gx"}))

	got, err := repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Weekly review", got.Title)
	assert.Equal(t, models.PriorityHigh, *got.Priority)
	require.NotNil(t, got.Project)
	assert.Equal(t, "Home", got.Project.Name)
	assert.Equal(t, []string{"g1"}, got.TagIDs())

	other, err := repo.FindByID(ctx, "u2", "t1")
	require.NoError(t, err)
	assert.Nil(t, other)

	upd := &models.TaskUpdate{
		Title:       ptr("Review"),
		Description: models.Some("notes"),
		Priority:    models.Null[models.Priority](),
		ProjectID:   models.Null[string](),
		TagIDs:      &[]string{"g2"},
	}
	require.NoError(t, repo.Update(ctx, "u1", "t1", upd, now.Add(time.Hour)))

	got, err = repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Review", got.Title)
	assert.Equal(t, "notes", *got.Description)
	assert.Nil(t, got.Priority)
	assert.Nil(t, got.ProjectID)
	assert.Nil(t, got.Project)
	assert.Equal(t, []string{"g2"}, got.TagIDs())
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Hour)))

	require.NoError(t, repo.Update(ctx, "u1", "t1", &models.TaskUpdate{TagIDs: &[]string{}}, now))
	got, err = repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	err = repo.Update(ctx, "u2", "t1", &models.TaskUpdate{Title: ptr("hijack")}, now)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = repo.Update(ctx, "u1", "t1", &models.TaskUpdate{ProjectID: models.Some("p2")}, now)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	require.NoError(t, repo.Update(ctx, "u1", "t1", &models.TaskUpdate{ProjectID: models.Some("p1")}, now))
	got, err = repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "p1", *got.ProjectID)
	assert.Equal(t, "Home", got.Project.Name)

	err = repo.Store(ctx, "u1", &models.Task{ID: "t2", Title: "x", Status: models.StatusTodo,
		ProjectID: ptr("p2"), CreatedAt: now, UpdatedAt: now}, nil)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	gone, err := repo.FindByID(ctx, "u1", "t2")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, repo.SetExternalRef(ctx, "u1", "t1", models.ExternalRef{
		ExternalTaskID: "g-1", Source: "GOOGLE", ExternalListID: "list-1", SyncedAt: now,
	}))
	got, err = repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", *got.ExternalTaskID)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", "t1"), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", "t1"))
	got, err = repo.FindByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_FindAllFilters(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()
	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	day := func(d int) *time.Time { return ptr(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)) }

	require.NoError(t, repo.Store(ctx, "u1", &models.Task{ID: "a", Title: "Buy milk", Status: models.StatusTodo,
		DueDate: day(3), ProjectID: ptr("p1"), CreatedAt: now, UpdatedAt: now}, []string{"g1"}))
	require.NoError(t, repo.Store(ctx, "u1", &models.Task{ID: "b", Title: "Gym", Status: models.StatusCompleted,
		DueDate: day(10), CreatedAt: now, UpdatedAt: now}, nil))
	require.NoError(t, repo.Store(ctx, "u2", &models.Task{ID: "c", Title: "Buy bread", Status: models.StatusTodo,
		CreatedAt: now, UpdatedAt: now}, nil))

	ids := func(f models.TaskFilter) []string {
		tasks, err := repo.FindAll(ctx, "u1", f)
		require.NoError(t, err)
		var out []string
		for _, t := range tasks {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, ids(models.TaskFilter{}))
	assert.Equal(t, []string{"b"}, ids(models.TaskFilter{Status: []models.TaskStatus{models.StatusCompleted}}))
	assert.Equal(t, []string{"a"}, ids(models.TaskFilter{ProjectID: ptr("p1")}))
	assert.Equal(t, []string{"a"}, ids(models.TaskFilter{TagID: ptr("g1")}))
	assert.Equal(t, []string{"b"}, ids(models.TaskFilter{DueFrom: day(5)}))
	assert.Equal(t, []string{"a"}, ids(models.TaskFilter{DueTo: day(5)}))
	assert.Equal(t, []string{"a"}, ids(models.TaskFilter{Search: ptr("buy")}))
}

func TestPostgres_TransactionAndChangeLog(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tasks := NewTaskRepository(db)
	changes := NewChangeRepository(db)
	mappings := NewMappingRepository(db)
	tx := NewTransactor(db)

	m, err := mappings.FindByProject(ctx, "u1", "p1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "list-1", m.ExternalListID)

	missing, err := mappings.FindByProject(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	boom := errors.New("boom")
	err = tx.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Tasks.Store(ctx, "u1", &models.Task{ID: "rolled-back", Title: "x", Status: models.StatusTodo,
			CreatedAt: now, UpdatedAt: now}, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	gone, err := tasks.FindByID(ctx, "u1", "rolled-back")
	require.NoError(t, err)
	assert.Nil(t, gone)

	for i, id := range []string{"c1", "c2"} {
		require.NoError(t, changes.Append(ctx, &models.TaskChange{
			ID: id, TaskID: "t1", ChangeType: models.ChangeUpdate, UserID: "u1", MappingID: "m1",
			ChangeData: models.ChangeData{"title": models.FieldChange{Old: "a", New: "b"}},
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		}))
	}
	pending, err := changes.ListPending(ctx, "u1", "m1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c1", pending[0].ID)
	assert.Equal(t, map[string]any{"old": "a", "new": "b"}, pending[0].ChangeData["title"])

	require.NoError(t, changes.MarkSynced(ctx, "u1", []string{"c1"}, "prov-1", now))
	pending, err = changes.ListPending(ctx, "u1", "m1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	active, err := mappings.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NoError(t, mappings.TouchSynced(ctx, "u1", "m1", now))
}
