package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const day = 24 * time.Hour

// TruncateDay returns midnight UTC of the calendar day containing t.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextAfter returns the first occurrence of rule whose calendar day is
// strictly after the day of after, truncated to midnight UTC. Equivalently,
// the first occurrence on or after the following midnight.
//
// The series is anchored at the rule's DTSTART when it carries one, and at
// the start of after's day otherwise. A nil result with a nil error means the
// series is exhausted (COUNT/UNTIL reached).
func NextAfter(rule string, after time.Time) (*time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence rule %q: %w", rule, err)
	}
	base := TruncateDay(after)
	if opt.Dtstart.IsZero() {
		opt.Dtstart = base
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule %q: %w", rule, err)
	}

	next := r.After(base.Add(day), true)
	if next.IsZero() {
		return nil, nil
	}
	next = TruncateDay(next)
	return &next, nil
}

// Anchor pins a COUNT-bounded rule that has no DTSTART to the day of first,
// so the count runs from a fixed first occurrence instead of restarting at
// every evaluation. Any other rule is returned unchanged.
func Anchor(rule string, first time.Time) string {
	opt, err := rrule.StrToROption(rule)
	if err != nil || opt.Count == 0 || !opt.Dtstart.IsZero() {
		return rule
	}
	anchored, ok := Normalize(rule + ";DTSTART=" + TruncateDay(first).Format("20060102T150405Z"))
	if !ok {
		return rule
	}
	return anchored
}
