package models

import "time"

// ChangeType is the kind of mutation recorded in the change log.
type ChangeType string

const (
	ChangeCreate ChangeType = "CREATE"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeData holds only the fields that differed, or a hand-built payload
// such as a deletion tombstone.
type ChangeData map[string]any

// FieldChange is the value stored under a key produced by a diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// TaskChange is an append-only change log entry for a synced task.
type TaskChange struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"taskId"`
	ChangeType ChangeType `json:"changeType"`
	UserID     string     `json:"userId"`
	ChangeData ChangeData `json:"changeData"`
	ProviderID *string    `json:"providerId"`
	MappingID  string     `json:"mappingId"`
	CreatedAt  time.Time  `json:"createdAt"`
	SyncedAt   *time.Time `json:"syncedAt"`
}

// TaskListMapping associates a project with a list at an external provider.
type TaskListMapping struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	ProjectID      string     `json:"projectId"`
	ProviderID     string     `json:"providerId"`
	Source         string     `json:"source"`
	ExternalListID string     `json:"externalListId"`
	IsActive       bool       `json:"isActive"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ExternalRef is what a provider hands back after accepting a task.
type ExternalRef struct {
	ExternalTaskID string
	Source         string
	ExternalListID string
	SyncedAt       time.Time
}
