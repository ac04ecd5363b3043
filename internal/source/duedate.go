package source

import "time"

// parseDueDate parses the due-date formats the task sources emit:
//
//   - "2006-01-02T15:04:05Z"  UTC instant
//   - "2006-01-02T15:04:05"   naive datetime, interpreted as local time
//   - "2006-01-02"            date only, due at end of the local day
//
// Returns nil when the value matches none of them.
func parseDueDate(value string) *time.Time {
	if t, err := time.Parse("2006-01-02T15:04:05Z", value); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local); err == nil {
		return &t
	}
	if d, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		t := d.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		return &t
	}
	return nil
}
