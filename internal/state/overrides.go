package state

import "time"

// SnoozeOverride suppresses one item from display until WakeAt. Snoozes are
// local-only: the upstream source is never informed. The override is keyed
// purely by item ID: if the item's due date changes upstream during the
// snoozed window the snooze is not re-armed (documented limitation).
type SnoozeOverride struct {
	ItemID   string
	SourceID string
	WakeAt   time.Time
}

// ResolvedOverride hides an item whose completion/resolution has been issued
// but which the source may keep returning until the mutation lands. It is
// cleared once a successful snapshot from the item's source omits the item.
type ResolvedOverride struct {
	ItemID   string
	SourceID string
	At       time.Time
}

// Overrides are the local-only tables consulted during merge. They live for
// the process lifetime and are only touched inside the store's critical
// section.
type Overrides struct {
	snoozes  map[string]SnoozeOverride
	resolved map[string]ResolvedOverride
}

// NewOverrides returns empty tables.
func NewOverrides() *Overrides {
	return &Overrides{
		snoozes:  make(map[string]SnoozeOverride),
		resolved: make(map[string]ResolvedOverride),
	}
}

// Snooze inserts or replaces the item's snooze override.
func (o *Overrides) Snooze(itemID, sourceID string, wakeAt time.Time) {
	o.snoozes[itemID] = SnoozeOverride{ItemID: itemID, SourceID: sourceID, WakeAt: wakeAt}
}

// Snoozed reports whether the item has an unexpired snooze at now.
func (o *Overrides) Snoozed(itemID string, now time.Time) bool {
	s, ok := o.snoozes[itemID]
	return ok && now.Before(s.WakeAt)
}

// MarkResolved records a pending completion/resolution for an item.
func (o *Overrides) MarkResolved(itemID, sourceID string, at time.Time) {
	o.resolved[itemID] = ResolvedOverride{ItemID: itemID, SourceID: sourceID, At: at}
}

// ClearResolved drops a pending resolution, used when the remote mutation
// fails and the optimistic removal has to be undone by the next merge.
func (o *Overrides) ClearResolved(itemID string) {
	delete(o.resolved, itemID)
}

// Resolved reports whether a pending resolution hides the item.
func (o *Overrides) Resolved(itemID string) bool {
	_, ok := o.resolved[itemID]
	return ok
}

// SnoozeCount returns the number of live snooze overrides.
func (o *Overrides) SnoozeCount() int { return len(o.snoozes) }

// gc drops overrides that no longer serve a purpose: expired snoozes, and
// snoozes or pending resolutions whose item a successful snapshot of its
// source no longer reports. Sources absent from seen (errored or not fetched
// this cycle) keep their overrides untouched.
func (o *Overrides) gc(seen map[string]map[string]bool, now time.Time) {
	for id, s := range o.snoozes {
		if !now.Before(s.WakeAt) {
			delete(o.snoozes, id)
			continue
		}
		if ids, ok := seen[s.SourceID]; ok && !ids[id] {
			delete(o.snoozes, id)
		}
	}
	for id, r := range o.resolved {
		if ids, ok := seen[r.SourceID]; ok && !ids[id] {
			delete(o.resolved, id)
		}
	}
}
