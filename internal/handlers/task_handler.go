package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/services"
)

type TaskHandler struct {
	service services.TaskService
}

func NewTaskHandler(service services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type createTaskRequest struct {
	Title          string                 `json:"title" binding:"required,max=500"`
	Description    *string                `json:"description"`
	Status         *models.TaskStatus     `json:"status" binding:"omitempty,oneof=todo in_progress completed"`
	DueDate        *time.Time             `json:"dueDate"`
	StartDate      *time.Time             `json:"startDate"`
	Duration       *int                   `json:"duration" binding:"omitempty,min=0"`
	Priority       *models.Priority       `json:"priority" binding:"omitempty,oneof=high medium low none"`
	EnergyLevel    *models.EnergyLevel    `json:"energyLevel" binding:"omitempty,oneof=high medium low"`
	PreferredTime  *models.TimePreference `json:"preferredTime" binding:"omitempty,oneof=morning afternoon evening"`
	ProjectID      *string                `json:"projectId"`
	TagIDs         []string               `json:"tagIds"`
	IsRecurring    bool                   `json:"isRecurring"`
	RecurrenceRule *string                `json:"recurrenceRule" binding:"omitempty,rrule"`

	IsAutoScheduled bool       `json:"isAutoScheduled"`
	ScheduleLocked  bool       `json:"scheduleLocked"`
	ScheduledStart  *time.Time `json:"scheduledStart"`
	ScheduledEnd    *time.Time `json:"scheduledEnd"`
	PostponedUntil  *time.Time `json:"postponedUntil"`
}

// updateTaskRequest lists every key a PUT body may carry. Keys outside this
// struct are rejected by the decoder.
type updateTaskRequest struct {
	Title         *string                                `json:"title" binding:"omitempty,min=1,max=500"`
	Description   models.Optional[string]                `json:"description"`
	Status        *models.TaskStatus                     `json:"status" binding:"omitempty,oneof=todo in_progress completed"`
	DueDate       models.Optional[time.Time]             `json:"dueDate"`
	StartDate     models.Optional[time.Time]             `json:"startDate"`
	Duration      models.Optional[int]                   `json:"duration"`
	Priority      models.Optional[models.Priority]       `json:"priority"`
	EnergyLevel   models.Optional[models.EnergyLevel]    `json:"energyLevel"`
	PreferredTime models.Optional[models.TimePreference] `json:"preferredTime"`

	IsRecurring    *bool                   `json:"isRecurring"`
	RecurrenceRule models.Optional[string] `json:"recurrenceRule"`

	IsAutoScheduled *bool                      `json:"isAutoScheduled"`
	ScheduleLocked  *bool                      `json:"scheduleLocked"`
	ScheduledStart  models.Optional[time.Time] `json:"scheduledStart"`
	ScheduledEnd    models.Optional[time.Time] `json:"scheduledEnd"`
	PostponedUntil  models.Optional[time.Time] `json:"postponedUntil"`

	ProjectID models.Optional[string] `json:"projectId"`
	TagIDs    *[]string               `json:"tagIds"`

	// Accepted and dropped: relation payloads, ownership and server-managed
	// completion stamps.
	Tags              json.RawMessage `json:"tags"`
	Project           json.RawMessage `json:"project"`
	UserID            json.RawMessage `json:"userId"`
	CompletedAt       json.RawMessage `json:"completedAt"`
	LastCompletedDate json.RawMessage `json:"lastCompletedDate"`
}

func (r *updateTaskRequest) toUpdate() (*models.TaskUpdate, error) {
	if v := r.Priority.Value; v != nil && !v.Valid() {
		return nil, fmt.Errorf("invalid priority %q", *v)
	}
	if v := r.EnergyLevel.Value; v != nil && !v.Valid() {
		return nil, fmt.Errorf("invalid energyLevel %q", *v)
	}
	if v := r.PreferredTime.Value; v != nil && !v.Valid() {
		return nil, fmt.Errorf("invalid preferredTime %q", *v)
	}
	if v := r.Duration.Value; v != nil && *v < 0 {
		return nil, fmt.Errorf("invalid duration %d", *v)
	}
	return &models.TaskUpdate{
		Title:           r.Title,
		Description:     r.Description,
		Status:          r.Status,
		DueDate:         r.DueDate,
		StartDate:       r.StartDate,
		Duration:        r.Duration,
		Priority:        r.Priority,
		EnergyLevel:     r.EnergyLevel,
		PreferredTime:   r.PreferredTime,
		IsRecurring:     r.IsRecurring,
		RecurrenceRule:  r.RecurrenceRule,
		IsAutoScheduled: r.IsAutoScheduled,
		ScheduleLocked:  r.ScheduleLocked,
		ScheduledStart:  r.ScheduledStart,
		ScheduledEnd:    r.ScheduledEnd,
		PostponedUntil:  r.PostponedUntil,
		ProjectID:       r.ProjectID,
		TagIDs:          r.TagIDs,
	}, nil
}

// Create godoc
// @Summary  Create a task
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    task body     createTaskRequest true "task"
// @Success  201  {object} models.Task
// @Failure  400  {object} map[string]string
// @Router   /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c, "create")
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[task][create] user=%s title=%q recurring=%t project=%v", userID, req.Title, req.IsRecurring, deref(req.ProjectID))

	task := &models.Task{
		Title:           req.Title,
		Description:     req.Description,
		DueDate:         req.DueDate,
		StartDate:       req.StartDate,
		Duration:        req.Duration,
		Priority:        req.Priority,
		EnergyLevel:     req.EnergyLevel,
		PreferredTime:   req.PreferredTime,
		ProjectID:       req.ProjectID,
		IsRecurring:     req.IsRecurring,
		RecurrenceRule:  req.RecurrenceRule,
		IsAutoScheduled: req.IsAutoScheduled,
		ScheduleLocked:  req.ScheduleLocked,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		PostponedUntil:  req.PostponedUntil,
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	created, err := h.service.Create(c.Request.Context(), userID, task, req.TagIDs)
	if err != nil {
		respondError(c, "create", "", err)
		return
	}
	log.Printf("[task][create][ok] id=%s", created.ID)
	c.JSON(http.StatusCreated, created)
}

// GetByID godoc
// @Summary  Get a task
// @Tags     tasks
// @Produce  json
// @Security BearerAuth
// @Param    id  path     string true "task id"
// @Success  200 {object} models.Task
// @Failure  404 {object} map[string]string
// @Router   /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := requireUser(c, "getByID")
	if !ok {
		return
	}
	id := c.Param("id")

	task, err := h.service.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, "getByID", id, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetAll godoc
// @Summary  List tasks
// @Tags     tasks
// @Produce  json
// @Security BearerAuth
// @Param    status    query    string false "comma separated statuses"
// @Param    projectId query    string false "project id"
// @Param    tagId     query    string false "tag id"
// @Param    dueFrom   query    string false "RFC3339 or YYYY-MM-DD"
// @Param    dueTo     query    string false "RFC3339 or YYYY-MM-DD"
// @Param    search    query    string false "title/description substring"
// @Success  200       {array}  models.Task
// @Router   /tasks [get]
func (h *TaskHandler) GetAll(c *gin.Context) {
	userID, ok := requireUser(c, "list")
	if !ok {
		return
	}
	log.Printf("[task][list] user=%s q=%v", userID, c.Request.URL.RawQuery)

	filter, err := parseFilter(c)
	if err != nil {
		log.Printf("[task][list][400] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tasks, err := h.service.GetAll(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, "list", "", err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	log.Printf("[task][list][ok] count=%d", len(tasks))
	c.JSON(http.StatusOK, tasks)
}

// Update godoc
// @Summary     Update a task
// @Description Partial update. Completing a recurring task archives the finished occurrence and moves the task to its next occurrence.
// @Tags        tasks
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id   path     string            true "task id"
// @Param       task body     updateTaskRequest true "fields to change"
// @Success     200  {object} models.Task
// @Failure     400  {object} map[string]string
// @Failure     404  {object} map[string]string
// @Failure     500  {object} map[string]string
// @Router      /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c, "update")
	if !ok {
		return
	}
	id := c.Param("id")

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][update][bind][err] id=%s: %v", id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		log.Printf("[task][update][400] id=%s: %v", id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if upd.Status != nil {
		log.Printf("[task][update] user=%s id=%s status=%s", userID, id, *upd.Status)
	}

	updated, err := h.service.Update(c.Request.Context(), userID, id, upd)
	if err != nil {
		respondError(c, "update", id, err)
		return
	}
	log.Printf("[task][update][ok] id=%s", id)
	c.JSON(http.StatusOK, updated)
}

// Delete godoc
// @Summary  Delete a task
// @Tags     tasks
// @Security BearerAuth
// @Param    id path string true "task id"
// @Success  204
// @Failure  404 {object} map[string]string
// @Router   /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c, "delete")
	if !ok {
		return
	}
	id := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, "delete", id, err)
		return
	}
	log.Printf("[task][delete][ok] id=%s", id)
	c.Status(http.StatusNoContent)
}

func parseFilter(c *gin.Context) (models.TaskFilter, error) {
	var filter models.TaskFilter
	if v, ok := c.GetQuery("status"); ok && v != "" {
		for _, s := range strings.Split(v, ",") {
			st := models.TaskStatus(strings.TrimSpace(s))
			if !st.Valid() {
				return filter, fmt.Errorf("invalid status %q", st)
			}
			filter.Status = append(filter.Status, st)
		}
	}
	if v, ok := c.GetQuery("projectId"); ok && v != "" {
		filter.ProjectID = &v
	}
	if v, ok := c.GetQuery("tagId"); ok && v != "" {
		filter.TagID = &v
	}
	if v, ok := c.GetQuery("search"); ok && v != "" {
		filter.Search = &v
	}
	for key, dst := range map[string]**time.Time{"dueFrom": &filter.DueFrom, "dueTo": &filter.DueTo} {
		v, ok := c.GetQuery(key)
		if !ok || v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s (RFC3339 or YYYY-MM-DD)", key)
		}
		*dst = &t
	}
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
