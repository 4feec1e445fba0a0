// internal/models/task.go
package models

import "time"

// TaskStatus defines the possible statuses for a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	}
	return false
}

type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

func (e EnergyLevel) Valid() bool {
	switch e {
	case EnergyHigh, EnergyMedium, EnergyLow:
		return true
	}
	return false
}

type TimePreference string

const (
	PreferMorning   TimePreference = "morning"
	PreferAfternoon TimePreference = "afternoon"
	PreferEvening   TimePreference = "evening"
)

func (t TimePreference) Valid() bool {
	switch t {
	case PreferMorning, PreferAfternoon, PreferEvening:
		return true
	}
	return false
}

type Tag struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Color  *string `json:"color,omitempty"`
	UserID string  `json:"userId"`
}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Task represents the structure of a task in the system.
type Task struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	Status        TaskStatus      `json:"status"`
	DueDate       *time.Time      `json:"dueDate"`
	StartDate     *time.Time      `json:"startDate"`
	Duration      *int            `json:"duration"`
	Priority      *Priority       `json:"priority"`
	EnergyLevel   *EnergyLevel    `json:"energyLevel"`
	PreferredTime *TimePreference `json:"preferredTime"`
	ProjectID     *string         `json:"projectId"`
	Project       *Project        `json:"project"`
	Tags          []Tag           `json:"tags"`
	UserID        string          `json:"userId"`

	IsRecurring       bool       `json:"isRecurring"`
	RecurrenceRule    *string    `json:"recurrenceRule"`
	LastCompletedDate *time.Time `json:"lastCompletedDate"`
	CompletedAt       *time.Time `json:"completedAt"`

	// Produced by the auto-scheduler.
	IsAutoScheduled bool       `json:"isAutoScheduled"`
	ScheduledStart  *time.Time `json:"scheduledStart"`
	ScheduledEnd    *time.Time `json:"scheduledEnd"`
	ScheduleScore   *float64   `json:"scheduleScore"`
	LastScheduled   *time.Time `json:"lastScheduled"`
	ScheduleLocked  bool       `json:"scheduleLocked"`
	PostponedUntil  *time.Time `json:"postponedUntil"`

	ExternalTaskID *string    `json:"externalTaskId"`
	Source         *string    `json:"source"`
	ExternalListID *string    `json:"externalListId"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TagIDs returns the identifiers of the task's tag associations.
func (t *Task) TagIDs() []string {
	ids := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	Status    []TaskStatus
	ProjectID *string
	TagID     *string
	DueFrom   *time.Time
	DueTo     *time.Time
	Search    *string
}
