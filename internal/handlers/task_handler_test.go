package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/services"
)

type stubService struct {
	userID  string
	update  *models.TaskUpdate
	created *models.Task
	tagIDs  []string
	filter  models.TaskFilter
	err     error
}

func (s *stubService) Create(_ context.Context, userID string, task *models.Task, tagIDs []string) (*models.Task, error) {
	s.userID, s.created, s.tagIDs = userID, task, tagIDs
	if s.err != nil {
		return nil, s.err
	}
	task.ID = "new-id"
	return task, nil
}

func (s *stubService) GetByID(_ context.Context, userID, id string) (*models.Task, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Task{ID: id, Title: "t", Status: models.StatusTodo}, nil
}

func (s *stubService) GetAll(_ context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	s.userID, s.filter = userID, filter
	return nil, s.err
}

func (s *stubService) Update(_ context.Context, userID, id string, upd *models.TaskUpdate) (*models.Task, error) {
	s.userID, s.update = userID, upd
	if s.err != nil {
		return nil, s.err
	}
	return &models.Task{ID: id, Title: "t", Status: models.StatusTodo}, nil
}

func (s *stubService) Delete(_ context.Context, userID, _ string) error {
	s.userID = userID
	return s.err
}

func newTestRouter(svc services.TaskService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	h := NewTaskHandler(svc)
	r.GET("/tasks", h.GetAll)
	r.POST("/tasks", h.Create)
	r.GET("/tasks/:id", h.GetByID)
	r.PUT("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdate_BindsPartialUpdate(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "user-1")

	w := do(r, http.MethodPut, "/tasks/task-1", `{
		"status": "completed",
		"description": null,
		"dueDate": "2024-01-08T00:00:00Z",
		"tagIds": [],
		"projectId": null
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	upd := svc.update
	require.NotNil(t, upd)
	assert.Equal(t, "user-1", svc.userID)
	assert.Equal(t, models.StatusCompleted, *upd.Status)
	assert.True(t, upd.Description.IsNull())
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), *upd.DueDate.Value)
	assert.False(t, upd.StartDate.Set)
	require.NotNil(t, upd.TagIDs)
	assert.Empty(t, *upd.TagIDs)
	assert.True(t, upd.ProjectID.IsNull())
	assert.Nil(t, upd.Title)
}

func TestUpdate_StripsRelationsAndServerFields(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "user-1")

	w := do(r, http.MethodPut, "/tasks/task-1", `{
		"title": "x",
		"tags": [{"id": "a"}],
		"project": {"id": "p"},
		"userId": "someone-else",
		"completedAt": "2020-01-01T00:00:00Z",
		"lastCompletedDate": null
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "x", *svc.update.Title)
	assert.False(t, svc.update.CompletedAt.Set)
	assert.False(t, svc.update.LastCompletedDate.Set)
	assert.Nil(t, svc.update.TagIDs)
	assert.False(t, svc.update.ProjectID.Set)
}

func TestUpdate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"colour": "red"}`},
		{"bad status", `{"status": "done"}`},
		{"bad priority", `{"priority": "urgent"}`},
		{"bad energy", `{"energyLevel": "max"}`},
		{"negative duration", `{"duration": -5}`},
		{"bad date", `{"dueDate": "tomorrow"}`},
		{"empty title", `{"title": ""}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			w := do(newTestRouter(svc, "user-1"), http.MethodPut, "/tasks/task-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, svc.update)
		})
	}
}

func TestUpdate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"not found", services.ErrTaskNotFound, http.StatusNotFound, "task not found"},
		{"recurrence", &services.RecurrenceError{TaskID: "task-1", Err: errors.New("bad rule")},
			http.StatusInternalServerError, "error handling task completion"},
		{"validation", &services.ValidationError{Field: "recurrenceRule", Reason: "unsupported recurrence rule"},
			http.StatusBadRequest, "invalid recurrenceRule: unsupported recurrence rule"},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestRouter(&stubService{err: tt.err}, "user-1"),
				http.MethodPut, "/tasks/task-1", `{"status":"completed"}`)
			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, w.Body.String())
		})
	}
}

func TestRequiresUser(t *testing.T) {
	w := do(newTestRouter(&stubService{}, ""), http.MethodGet, "/tasks/task-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetByID(t *testing.T) {
	svc := &stubService{}
	w := do(newTestRouter(svc, "user-1"), http.MethodGet, "/tasks/task-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"task-1"`)

	w = do(newTestRouter(&stubService{err: services.ErrTaskNotFound}, "user-1"), http.MethodGet, "/tasks/x", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	svc := &stubService{}
	w := do(newTestRouter(svc, "user-1"), http.MethodDelete, "/tasks/task-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user-1", svc.userID)

	w = do(newTestRouter(&stubService{err: services.ErrTaskNotFound}, "user-1"), http.MethodDelete, "/tasks/task-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreate(t *testing.T) {
	svc := &stubService{}
	w := do(newTestRouter(svc, "user-1"), http.MethodPost, "/tasks", `{
		"title": "Stretch",
		"priority": "low",
		"isRecurring": true,
		"recurrenceRule": "freq=daily",
		"tagIds": ["t1"]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Stretch", svc.created.Title)
	assert.Equal(t, models.PriorityLow, *svc.created.Priority)
	assert.Equal(t, []string{"t1"}, svc.tagIDs)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"priority": "low"}`},
		{"bad rule", `{"title": "x", "recurrenceRule": "whenever"}`},
		{"bad preferred time", `{"title": "x", "preferredTime": "night"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			w := do(newTestRouter(svc, "user-1"), http.MethodPost, "/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, svc.created)
		})
	}
}

func TestGetAll_ParsesFilter(t *testing.T) {
	svc := &stubService{}
	w := do(newTestRouter(svc, "user-1"), http.MethodGet,
		"/tasks?status=todo,in_progress&projectId=p1&tagId=t1&dueFrom=2024-01-01&dueTo=2024-01-31T00:00:00Z&search=gym", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	f := svc.filter
	assert.Equal(t, []models.TaskStatus{models.StatusTodo, models.StatusInProgress}, f.Status)
	assert.Equal(t, "p1", *f.ProjectID)
	assert.Equal(t, "t1", *f.TagID)
	assert.Equal(t, "gym", *f.Search)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.DueFrom)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *f.DueTo)

	w = do(newTestRouter(svc, "user-1"), http.MethodGet, "/tasks?status=later", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
