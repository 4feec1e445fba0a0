package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowtask/taskd/internal/models"
)

func TestBuildArchive_CopiesOccurrence(t *testing.T) {
	src := weeklyTask()
	src.Description = ptr("notes")
	src.Duration = ptr(30)

	a := BuildArchive(&src, clock, owner)

	assert.NotEqual(t, src.ID, a.ID)
	assert.Equal(t, models.StatusCompleted, a.Status)
	assert.False(t, a.IsRecurring)
	assert.Nil(t, a.RecurrenceRule)
	assert.Equal(t, *src.DueDate, *a.DueDate)
	assert.Equal(t, *src.StartDate, *a.StartDate)
	assert.Equal(t, "notes", *a.Description)
	assert.Equal(t, 30, *a.Duration)
	assert.Equal(t, clock, *a.CompletedAt)
	assert.Equal(t, owner, a.UserID)
	assert.Equal(t, src.TagIDs(), a.TagIDs())
	assert.Nil(t, a.ExternalTaskID)
}

func TestBuildArchive_DoesNotAliasSource(t *testing.T) {
	src := weeklyTask()
	a := BuildArchive(&src, clock, owner)

	*src.DueDate = day(2030, 1, 1)
	src.Tags[0].ID = "changed"

	assert.Equal(t, day(2024, 1, 1), *a.DueDate)
	assert.Equal(t, "tag-a", a.Tags[0].ID)
}

func TestBuildArchive_NoDueDateUsesCompletion(t *testing.T) {
	src := weeklyTask()
	src.DueDate = nil

	a := BuildArchive(&src, clock, owner)
	assert.Equal(t, clock, *a.DueDate)
}
