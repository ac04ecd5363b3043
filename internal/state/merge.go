package state

import (
	"sort"
	"time"

	"github.com/todotray/todotray/internal/source"
)

// tomorrowVisibleHour is the local hour from which the Tomorrow category is
// shown. Before it, tomorrow's items are withheld so the morning view stays
// focused on today.
const tomorrowVisibleHour = 12

// Merge folds one cycle's snapshots plus the local override tables into a
// fresh AppState. It is pure except for override garbage collection: expired
// snoozes and confirmed resolutions are dropped from the tables as part of
// the pass.
//
// The returned state carries no version; the store assigns one at publish.
// Counts are recomputed from the built lists, autostart and the snooze option
// labels carry over from prev, and a source whose snapshot errored
// contributes nothing except its LastError entry; other sources are
// unaffected.
func Merge(snaps []source.Snapshot, prev AppState, o *Overrides, now time.Time) AppState {
	seen := make(map[string]map[string]bool, len(snaps))
	for _, snap := range snaps {
		if !snap.OK() {
			continue
		}
		ids := make(map[string]bool, len(snap.Items))
		for _, item := range snap.Items {
			ids[item.ID] = true
		}
		seen[snap.SourceID] = ids
	}
	o.gc(seen, now)

	next := AppState{
		Loading:          false,
		AutostartEnabled: prev.AutostartEnabled,
		SnoozeDurations:  prev.SnoozeDurations,
	}

	showTomorrow := now.Local().Hour() >= tomorrowVisibleHour

	for _, snap := range snaps {
		if !snap.OK() {
			if next.LastError == nil {
				next.LastError = make(map[string]ErrorSummary)
			}
			next.LastError[snap.SourceID] = ErrorSummary{
				Message: snap.Err.Error(),
				At:      snap.FetchedAt,
			}
			continue
		}

		var sectionItems []WorkItem
		for _, raw := range snap.Items {
			if o.Snoozed(raw.ID, now) || o.Resolved(raw.ID) {
				continue
			}
			switch snap.Kind {
			case source.KindTask:
				if item, ok := categorizeTask(snap, raw, now, showTomorrow); ok {
					next.appendTask(item)
				}
			case source.KindIssue:
				next.InProgress = append(next.InProgress, workItem(snap, raw, CategoryInProgress,
					taskDisplayTime(raw.Due, false, now)))
			case source.KindNotification:
				sectionItems = append(sectionItems, workItem(snap, raw, CategoryNotification,
					relativeTime(raw.Updated, now)))
			case source.KindCalendar:
				sectionItems = append(sectionItems, workItem(snap, raw, CategoryCalendar,
					calendarDisplayTime(raw.Start, raw.End, raw.AllDay)))
			}
		}

		// Empty sections are dropped rather than rendered as headers.
		if len(sectionItems) > 0 {
			sec := Section{Account: snap.Account, Items: sectionItems}
			if snap.Kind == source.KindNotification {
				next.Notifications = append(next.Notifications, sec)
			} else {
				next.Calendar = append(next.Calendar, sec)
			}
		}
	}

	sortByDue(next.Overdue)
	sortByDue(next.Today)
	sortByDue(next.Tomorrow)
	recount(&next)
	return next
}

// categorizeTask places a dated task against the local midnight boundaries.
// Items due at exactly midnight belong to the day that starts there, so a
// due date of today 00:00 is Today, not Overdue. Tasks outside the
// overdue/today/tomorrow window are not displayed.
func categorizeTask(snap source.Snapshot, raw source.RawItem, now time.Time, showTomorrow bool) (WorkItem, bool) {
	if raw.Due == nil {
		return WorkItem{}, false
	}

	todayStart := startOfDay(now)
	tomorrowStart := todayStart.AddDate(0, 0, 1)
	dayAfterStart := todayStart.AddDate(0, 0, 2)
	due := raw.Due.In(time.Local)

	switch {
	case due.Before(todayStart):
		return workItem(snap, raw, CategoryOverdue, taskDisplayTime(raw.Due, true, now)), true
	case due.Before(tomorrowStart):
		return workItem(snap, raw, CategoryToday, taskDisplayTime(raw.Due, false, now)), true
	case due.Before(dayAfterStart) && showTomorrow:
		return workItem(snap, raw, CategoryTomorrow, taskDisplayTime(raw.Due, false, now)), true
	default:
		return WorkItem{}, false
	}
}

func workItem(snap source.Snapshot, raw source.RawItem, cat Category, displayTime string) WorkItem {
	return WorkItem{
		ID:          raw.ID,
		Source:      snap.SourceID,
		Kind:        snap.Kind,
		Account:     snap.Account,
		Title:       raw.Title,
		Detail:      raw.Detail,
		Category:    cat,
		DueAt:       raw.Due,
		CanAct:      raw.CanAct,
		ActionURL:   raw.ActionURL,
		DisplayTime: displayTime,
	}
}

func (s *AppState) appendTask(item WorkItem) {
	switch item.Category {
	case CategoryOverdue:
		s.Overdue = append(s.Overdue, item)
	case CategoryToday:
		s.Today = append(s.Today, item)
	case CategoryTomorrow:
		s.Tomorrow = append(s.Tomorrow, item)
	}
}

// sortByDue orders ascending by due date, undated items last. Ascending
// means the most overdue items surface first in the Overdue list.
func sortByDue(items []WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].DueAt, items[j].DueAt
		switch {
		case a != nil && b != nil:
			return a.Before(*b)
		case a != nil:
			return true
		default:
			return false
		}
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// NewlyOverdue returns the items present in cur's Overdue category that were
// not in prev's, in cur's order. The refresh loop turns this diff into
// overdue notifications.
func NewlyOverdue(prev, cur AppState) []WorkItem {
	if len(cur.Overdue) == 0 {
		return nil
	}
	was := make(map[string]bool, len(prev.Overdue))
	for _, item := range prev.Overdue {
		was[item.ID] = true
	}
	var fresh []WorkItem
	for _, item := range cur.Overdue {
		if !was[item.ID] {
			fresh = append(fresh, item)
		}
	}
	return fresh
}
