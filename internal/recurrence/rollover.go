package recurrence

import (
	"math"
	"time"
)

// Rollover carries the dates of the next live occurrence. NextStart is nil
// when the source task did not have both a start and a due date.
type Rollover struct {
	NextDue   time.Time
	NextStart *time.Time
	// OffsetDays is the whole-day distance from start to due that was preserved.
	OffsetDays int
}

// OffsetDays returns the start→due distance rounded to whole days.
func OffsetDays(start, due time.Time) int {
	return int(math.Round(float64(due.Sub(start)) / float64(day)))
}

// ComputeRollover applies the original start→due offset to nextDue.
func ComputeRollover(start, due *time.Time, nextDue time.Time) Rollover {
	ro := Rollover{NextDue: nextDue}
	if start == nil || due == nil {
		return ro
	}
	ro.OffsetDays = OffsetDays(*start, *due)
	nextStart := nextDue.AddDate(0, 0, -ro.OffsetDays)
	ro.NextStart = &nextStart
	return ro
}
