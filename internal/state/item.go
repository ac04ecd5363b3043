// Package state holds the aggregated application state: the WorkItem model,
// the merge engine that folds per-source snapshots into one snapshot, the
// local-only override tables, and the versioned store every read and write
// passes through.
package state

import (
	"time"

	"github.com/todotray/todotray/internal/source"
)

// Category is the display bucket a work item lands in.
type Category string

const (
	CategoryOverdue      Category = "overdue"
	CategoryToday        Category = "today"
	CategoryTomorrow     Category = "tomorrow"
	CategoryInProgress   Category = "in_progress"
	CategoryNotification Category = "notification"
	CategoryCalendar     Category = "calendar"
)

// WorkItem is one displayable item, rebuilt from source data on every merge.
// IDs are stable across cycles so consecutive states can be diffed.
type WorkItem struct {
	ID       string      `json:"id"`
	Source   string      `json:"source"`
	Kind     source.Kind `json:"kind"`
	Account  string      `json:"account,omitempty"`
	Title    string      `json:"title"`
	Detail   string      `json:"detail,omitempty"`
	Category Category    `json:"category"`
	DueAt    *time.Time  `json:"due_at,omitempty"`
	// CanAct reports whether a complete/resolve command applies to this
	// item. Commands on items with CanAct false are refused.
	CanAct      bool   `json:"can_act"`
	ActionURL   string `json:"action_url,omitempty"`
	DisplayTime string `json:"display_time"`
}

// Section groups notification or calendar items by originating account,
// preserving source-provided item order.
type Section struct {
	Account string     `json:"account"`
	Items   []WorkItem `json:"items"`
}

// ErrorSummary describes the most recent failure of one source.
type ErrorSummary struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AppState is the published snapshot. It is rebuilt wholesale on every
// refresh and every optimistic command; once published it is immutable and
// neither the struct nor anything reachable through its slices and maps may
// be modified.
type AppState struct {
	// Version is assigned by the store at publish time, strictly
	// increasing for the process lifetime.
	Version uint64 `json:"version"`

	Overdue       []WorkItem `json:"overdue"`
	Today         []WorkItem `json:"today"`
	Tomorrow      []WorkItem `json:"tomorrow"`
	InProgress    []WorkItem `json:"in_progress"`
	Notifications []Section  `json:"notifications"`
	Calendar      []Section  `json:"calendar"`

	OverdueCount      int `json:"overdue_count"`
	TodayCount        int `json:"today_count"`
	TomorrowCount     int `json:"tomorrow_count"`
	InProgressCount   int `json:"in_progress_count"`
	NotificationCount int `json:"notification_count"`
	CalendarCount     int `json:"calendar_count"`

	Loading bool `json:"loading"`
	// LastError tracks the sources that failed in the most recent cycle,
	// keyed by source ID. Healthy sources have no entry.
	LastError map[string]ErrorSummary `json:"last_error,omitempty"`

	AutostartEnabled bool     `json:"autostart_enabled"`
	SnoozeDurations  []string `json:"snooze_durations"`
}

// Find looks an item up by ID across every categorized list and section.
func (s AppState) Find(id string) (WorkItem, bool) {
	for _, list := range [][]WorkItem{s.Overdue, s.Today, s.Tomorrow, s.InProgress} {
		for _, item := range list {
			if item.ID == id {
				return item, true
			}
		}
	}
	for _, sections := range [][]Section{s.Notifications, s.Calendar} {
		for _, sec := range sections {
			for _, item := range sec.Items {
				if item.ID == id {
					return item, true
				}
			}
		}
	}
	return WorkItem{}, false
}

// FindInAccount looks a notification item up within one account's section.
func (s AppState) FindInAccount(account, id string) (WorkItem, bool) {
	for _, sec := range s.Notifications {
		if sec.Account != account {
			continue
		}
		for _, item := range sec.Items {
			if item.ID == id {
				return item, true
			}
		}
	}
	return WorkItem{}, false
}

// RemoveItem returns a copy of s with the identified item filtered out of
// every list and section and the counts recomputed. Sections left empty by
// the removal are dropped, matching merge output.
func RemoveItem(s AppState, id string) AppState {
	next := s
	next.Overdue = withoutItem(s.Overdue, id)
	next.Today = withoutItem(s.Today, id)
	next.Tomorrow = withoutItem(s.Tomorrow, id)
	next.InProgress = withoutItem(s.InProgress, id)
	next.Notifications = withoutSectionItem(s.Notifications, id)
	next.Calendar = withoutSectionItem(s.Calendar, id)
	recount(&next)
	return next
}

func withoutItem(items []WorkItem, id string) []WorkItem {
	out := make([]WorkItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func withoutSectionItem(sections []Section, id string) []Section {
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		items := withoutItem(sec.Items, id)
		if len(items) > 0 {
			out = append(out, Section{Account: sec.Account, Items: items})
		}
	}
	return out
}

// recount rebuilds every aggregate count from the lists themselves. Counts
// are never maintained incrementally.
func recount(s *AppState) {
	s.OverdueCount = len(s.Overdue)
	s.TodayCount = len(s.Today)
	s.TomorrowCount = len(s.Tomorrow)
	s.InProgressCount = len(s.InProgress)
	s.NotificationCount = 0
	for _, sec := range s.Notifications {
		s.NotificationCount += len(sec.Items)
	}
	s.CalendarCount = 0
	for _, sec := range s.Calendar {
		s.CalendarCount += len(sec.Items)
	}
}
