// Package recurrence interprets task recurrence rules.
//
// Rules are stored verbatim on a task and canonicalized by Normalize into the
// RFC 5545 RRULE value grammar ("FREQ=WEEKLY;BYDAY=MO") before NextAfter
// evaluates them. All dates are handled at day resolution in UTC.
package recurrence
