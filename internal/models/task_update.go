package models

import "time"

// TaskUpdate is the typed partial update applied to a stored task. Only the
// fields listed here can change through the update path; Set=false leaves a
// column untouched.
type TaskUpdate struct {
	Title         *string
	Description   Optional[string]
	Status        *TaskStatus
	DueDate       Optional[time.Time]
	StartDate     Optional[time.Time]
	Duration      Optional[int]
	Priority      Optional[Priority]
	EnergyLevel   Optional[EnergyLevel]
	PreferredTime Optional[TimePreference]

	IsRecurring    *bool
	RecurrenceRule Optional[string]

	IsAutoScheduled *bool
	ScheduleLocked  *bool
	ScheduledStart  Optional[time.Time]
	ScheduledEnd    Optional[time.Time]
	PostponedUntil  Optional[time.Time]

	// Server-managed; never bound from a request body.
	CompletedAt       Optional[time.Time]
	LastCompletedDate Optional[time.Time]

	// Explicit null disconnects the project, a value connects it.
	ProjectID Optional[string]
	// nil leaves tags untouched; a non-nil slice (even empty) replaces the set.
	TagIDs *[]string
}

// MarksCompleted reports whether the update moves the task to COMPLETED.
func (u *TaskUpdate) MarksCompleted() bool {
	return u.Status != nil && *u.Status == StatusCompleted
}

// Empty reports whether the update touches no column and no association.
func (u *TaskUpdate) Empty() bool {
	return u.Title == nil && !u.Description.Set && u.Status == nil &&
		!u.DueDate.Set && !u.StartDate.Set && !u.Duration.Set &&
		!u.Priority.Set && !u.EnergyLevel.Set && !u.PreferredTime.Set &&
		u.IsRecurring == nil && !u.RecurrenceRule.Set &&
		u.IsAutoScheduled == nil && u.ScheduleLocked == nil &&
		!u.ScheduledStart.Set && !u.ScheduledEnd.Set && !u.PostponedUntil.Set &&
		!u.CompletedAt.Set && !u.LastCompletedDate.Set &&
		!u.ProjectID.Set && u.TagIDs == nil
}
