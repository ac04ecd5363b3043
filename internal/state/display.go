package state

import (
	"fmt"
	"time"
)

// taskDisplayTime renders the pre-formatted time label for a dated task:
// how far overdue it is, the clock time it is due, or "no due date".
func taskDisplayTime(due *time.Time, overdue bool, now time.Time) string {
	if due == nil {
		return "no due date"
	}
	local := due.In(time.Local)
	if overdue {
		diff := now.Sub(local)
		switch {
		case diff >= 24*time.Hour:
			return fmt.Sprintf("%dd ago", int(diff.Hours())/24)
		case diff >= time.Hour:
			return fmt.Sprintf("%dh ago", int(diff.Hours()))
		default:
			return "overdue"
		}
	}
	return local.Format("15:04")
}

// relativeTime renders a notification's age.
func relativeTime(updated *time.Time, now time.Time) string {
	if updated == nil {
		return "recent"
	}
	diff := now.Sub(*updated)
	switch {
	case diff >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours())/24)
	case diff >= time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff >= time.Minute:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	default:
		return updated.In(time.Local).Format("15:04")
	}
}

// calendarDisplayTime renders an event's time range.
func calendarDisplayTime(start, end *time.Time, allDay bool) string {
	if allDay || start == nil {
		return "All day"
	}
	s := start.In(time.Local)
	if end != nil && end.After(*start) {
		return s.Format("15:04") + "-" + end.In(time.Local).Format("15:04")
	}
	return s.Format("15:04")
}
